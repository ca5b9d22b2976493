package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/rules"
	"github.com/mikey/phishing-detector/internal/whitelist"
	"go.uber.org/zap"
)

// Weights are the multipliers of the four fused signals
type Weights struct {
	GPT      float64
	Patterns float64
	URLs     float64
	Sender   float64
}

// DefaultWeights returns the stock 0.4/0.25/0.2/0.15 weights
func DefaultWeights() Weights {
	return Weights{GPT: 0.4, Patterns: 0.25, URLs: 0.2, Sender: 0.15}
}

const (
	perPatternPoints = 15
	perURLPoints     = 30
	componentCap     = 100

	dangerousAttachmentBonus = 20
	oddHourBonus             = 5
	replyToMismatchBonus     = 15
	externalImagesBonus      = 10
	externalImagesThreshold  = 3
)

// Scorer fuses the detection signals into a bounded risk score
type Scorer struct {
	weights Weights
	rules   *rules.Rules
	trusted *whitelist.Checker
	logger  *zap.Logger
}

// New creates a new risk scorer
func New(weights Weights, r *rules.Rules, trusted *whitelist.Checker, logger *zap.Logger) *Scorer {
	return &Scorer{
		weights: weights,
		rules:   r,
		trusted: trusted,
		logger:  logger,
	}
}

// Calculate returns the fused score in [0, 100]
func (s *Scorer) Calculate(gptScore, patternMatches, suspiciousURLs int, record *core.EmailRecord) int {
	gpt := float64(gptScore) * s.weights.GPT
	patterns := float64(min(patternMatches*perPatternPoints, componentCap)) * s.weights.Patterns
	urls := float64(min(suspiciousURLs*perURLPoints, componentCap)) * s.weights.URLs
	sender := float64(s.SenderTrust(record.SenderRaw)) * s.weights.Sender
	bonus := float64(s.bonus(record))

	total := math.Round(gpt + patterns + urls + sender + bonus)
	score := int(math.Max(0, math.Min(100, total)))

	s.logger.Debug("Calculated risk score",
		zap.Float64("gpt", gpt),
		zap.Float64("patterns", patterns),
		zap.Float64("urls", urls),
		zap.Float64("sender", sender),
		zap.Float64("bonus", bonus),
		zap.Int("score", score))

	return score
}

// SenderTrust returns a suspicion score in [0, 100] for a raw sender; 0 means
// the sender belongs to a trusted domain
func (s *Scorer) SenderTrust(sender string) int {
	if s.trusted.IsTrusted(sender) {
		return 0
	}

	lowered := strings.ToLower(sender)
	score := 0

	atCount := strings.Count(sender, "@")
	if atCount == 0 {
		score += 50
	}
	if atCount > 1 {
		score += 30
	}

	if atCount > 0 {
		domain := sender[strings.LastIndex(sender, "@")+1:]
		firstLabel := strings.SplitN(domain, ".", 2)[0]
		if strings.IndexFunc(firstLabel, unicode.IsDigit) >= 0 {
			score += 20
		}
	}

	for _, keyword := range s.rules.SenderRiskKeywords {
		if strings.Contains(lowered, keyword) {
			score += 15
		}
	}

	return min(score, componentCap)
}

func (s *Scorer) bonus(record *core.EmailRecord) int {
	bonus := 0

	if s.hasDangerousAttachment(record.Attachments) {
		bonus += dangerousAttachmentBonus
	}
	if record.SentAtOddHour {
		bonus += oddHourBonus
	}
	if record.ReplyToMismatch {
		bonus += replyToMismatchBonus
	}
	if record.ExternalImagesCount > externalImagesThreshold {
		bonus += externalImagesBonus
	}

	return bonus
}

func (s *Scorer) hasDangerousAttachment(attachments []string) bool {
	for _, a := range attachments {
		lowered := strings.ToLower(a)
		for _, ext := range s.rules.DangerousExtensions {
			if strings.HasSuffix(lowered, ext) {
				return true
			}
		}
	}
	return false
}

// RiskFactors returns advisory notes describing the score
func (s *Scorer) RiskFactors(score int, record *core.EmailRecord, suspiciousURLs int) []string {
	var factors []string

	switch {
	case score > 80:
		factors = append(factors, "Very high phishing probability")
	case score > 60:
		factors = append(factors, "High phishing probability")
	case score > 40:
		factors = append(factors, "Moderate phishing risk")
	default:
		factors = append(factors, "Low phishing risk")
	}

	if suspiciousURLs > 0 {
		factors = append(factors, "Contains suspicious URLs")
	}
	if record.SenderSpoofed {
		factors = append(factors, "Sender appears spoofed")
	}
	if record.UrgencyDetected {
		factors = append(factors, "Uses urgency tactics")
	}

	return factors
}
