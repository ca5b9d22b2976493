package filter

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/parser"
	"github.com/mikey/phishing-detector/internal/patterns"
	"github.com/mikey/phishing-detector/internal/rules"
	"github.com/mikey/phishing-detector/internal/scoring"
	"github.com/mikey/phishing-detector/internal/urlcheck"
	"github.com/mikey/phishing-detector/internal/whitelist"
	"go.uber.org/zap"
)

type stubLLM struct {
	score int
}

func (s stubLLM) AssessEmail(context.Context, *core.Email) (*core.ThreatAssessment, error) {
	return &core.ThreatAssessment{Score: s.score, Threats: []string{"model flagged"}, Confidence: 0.9}, nil
}

func newTestEngine(llmScore int) *core.DetectionEngine {
	logger := zap.NewNop()
	r := rules.Default()
	return core.NewDetectionEngine(
		parser.New(r, logger),
		urlcheck.New(r, logger),
		patterns.New(r, logger),
		scoring.New(scoring.DefaultWeights(), r, whitelist.NewChecker(r.TrustedDomains, logger), logger),
		stubLLM{score: llmScore},
		nil,
		logger,
		core.EngineConfig{},
	)
}

const phishingBody = "Dear customer,\r\n" +
	"We detected suspicious activity on your account. Your account will be suspended within 24 hours. " +
	"Click here immediately to verify your password and login details: http://bit.ly/secure-verify\r\n"

const phishingMessage = "From: security@amaz0n-alerts.com\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: URGENT: Verify Your Account Now!\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" + phishingBody

const benignMessage = "From: newsletter@company.com\r\n" +
	"To: reader@example.com\r\n" +
	"Subject: Monthly update\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Here is what happened at the company this month.\r\n"
