// Package prompt holds the phishing-analysis prompt shared by every LLM
// provider and the parser for the model's answer.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mikey/phishing-detector/internal/core"
)

// System is sent as the system message (or its provider equivalent)
const System = `You are an expert email security analyst. Analyze emails for phishing indicators.

Return JSON with:
- score: 0-100 phishing likelihood
- threats: list of specific threats found
- indicators: suspicious patterns detected
- confidence: your confidence level 0-1

Look for:
- Spoofed sender addresses
- Urgency/fear tactics
- Suspicious URLs
- Grammar/spelling errors
- Requests for sensitive info
- Too good to be true offers`

const userFormat = `Analyze this email for phishing:

From: %s
Subject: %s

Body:
%s

Provide detailed phishing analysis in JSON format.`

// ErrEmptyResponse is returned when the model produced no text at all
var ErrEmptyResponse = errors.New("empty response from model")

// User builds the per-email prompt. The body should already be prepared by
// utils.TextProcessor.
func User(sender, subject, body string) string {
	return fmt.Sprintf(userFormat, sender, subject, body)
}

// Combined joins the system and user prompts for providers with a single
// text input
func Combined(sender, subject, body string) string {
	return System + "\n\n" + User(sender, subject, body)
}

type modelAnswer struct {
	Score      float64  `json:"score"`
	Threats    []string `json:"threats"`
	Indicators []string `json:"indicators"`
	Confidence *float64 `json:"confidence"`
}

// ParseAssessment turns the model's reply into a ThreatAssessment. The reply
// may wrap the JSON object in prose or code fences; when no object can be
// decoded a keyword heuristic over the text is used instead.
func ParseAssessment(text string) (*core.ThreatAssessment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if answer, ok := extractJSON(text); ok {
		confidence := 0.5
		if answer.Confidence != nil {
			confidence = *answer.Confidence
		}
		return &core.ThreatAssessment{
			Score:      clampScore(answer.Score),
			Threats:    nonNil(answer.Threats),
			Indicators: answer.Indicators,
			Confidence: clampUnit(confidence),
		}, nil
	}

	return heuristic(text), nil
}

func extractJSON(text string) (*modelAnswer, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &answer); err != nil {
		return nil, false
	}
	return &answer, true
}

func heuristic(text string) *core.ThreatAssessment {
	lower := strings.ToLower(text)

	assessment := &core.ThreatAssessment{
		Score:      50,
		Threats:    []string{},
		Confidence: 0.7,
	}
	if strings.Contains(lower, "suspicious") {
		assessment.Threats = append(assessment.Threats, "Suspicious content detected")
	}
	if strings.Contains(lower, "phishing") {
		assessment.Score = 75
	}
	if strings.Contains(lower, "urgent") {
		assessment.Threats = append(assessment.Threats, "Urgency tactics detected")
	}
	return assessment
}

func clampScore(score float64) int {
	s := int(math.Round(score))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
