package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNilEmail is returned when an analysis is requested for a missing email
var ErrNilEmail = errors.New("email is nil")

// Email represents the raw email handed to the detector
type Email struct {
	Sender  string            `json:"sender"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// AuthResults holds authentication header values as read from the message.
// Nothing here is cryptographically verified.
type AuthResults struct {
	SPFPass       bool
	DKIMPass      bool
	DMARCPass     bool
	ReturnPath    string
	ReceivedSPF   string
	DKIMSignature string
	MessageID     string
}

// EmailRecord is the normalized form of an email produced by the parser
type EmailRecord struct {
	SenderRaw     string
	SenderDisplay string
	SenderEmail   string
	SenderDomain  string

	Subject string
	Body    string
	Headers map[string]string

	// URLs and Attachments are deduplicated and sorted
	URLs        []string
	Attachments []string

	UrgencyDetected     bool
	SenderSpoofed       bool
	SentAtOddHour       bool
	ReplyToMismatch     bool
	ExternalImagesCount int

	// Auth is nil when the email carried no headers
	Auth *AuthResults
}

// ThreatAssessment is the signal returned by an LLM threat assessor
type ThreatAssessment struct {
	Score      int      `json:"score"`
	Threats    []string `json:"threats"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// FallbackAssessment is substituted whenever the LLM assessor fails
func FallbackAssessment(cause error) *ThreatAssessment {
	return &ThreatAssessment{
		Score:      50,
		Threats:    []string{fmt.Sprintf("Analysis error: %v", cause)},
		Confidence: 0.5,
	}
}

// RiskLevel is one of four ordered severity bands
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the position of the level in the LOW..CRITICAL ordering, or -1
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// ParseRiskLevel parses a risk level name case-insensitively
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level.Rank() < 0 {
		return "", fmt.Errorf("unknown risk level: %q", s)
	}
	return level, nil
}

// RiskThresholds are the lower bounds of the MEDIUM, HIGH and CRITICAL bands
type RiskThresholds struct {
	Low    int
	Medium int
	High   int
}

// DefaultThresholds returns the stock 30/60/85 thresholds
func DefaultThresholds() RiskThresholds {
	return RiskThresholds{Low: 30, Medium: 60, High: 85}
}

// Level maps a score to its tier. Intervals are left-closed: a score equal to
// a threshold belongs to the higher tier.
func (t RiskThresholds) Level(score int) RiskLevel {
	switch {
	case score < t.Low:
		return RiskLow
	case score < t.Medium:
		return RiskMedium
	case score < t.High:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// DomainInfo describes the host of a URL. It is informational only and does
// not feed the score.
type DomainInfo struct {
	URL               string `json:"url"`
	Domain            string `json:"domain"`
	RegistrableDomain string `json:"registrable_domain"`
	UnicodeDomain     string `json:"unicode_domain"`
	IsHTTPS           bool   `json:"is_https"`
	HasPort           bool   `json:"has_port"`
	PathDepth         int    `json:"path_depth"`
	HasQuery          bool   `json:"has_query"`
	IsShortened       bool   `json:"is_shortened"`
	IsIP              bool   `json:"is_ip"`
	IsPunycode        bool   `json:"is_punycode"`
}

// DetectionResult is the outcome of analyzing one email
type DetectionResult struct {
	Score           int               `json:"score"`
	RiskLevel       RiskLevel         `json:"risk_level"`
	Threats         []string          `json:"threats"`
	SuspiciousURLs  []string          `json:"suspicious_urls"`
	Recommendations []string          `json:"recommendations"`
	Analysis        *ThreatAssessment `json:"analysis"`
	Timestamp       string            `json:"timestamp"`

	// RiskFactors and URLDetails are advisory and not part of the
	// serialized result. URLDetails follows SuspiciousURLs, skipping URLs
	// that could not be parsed.
	RiskFactors []string      `json:"-"`
	URLDetails  []*DomainInfo `json:"-"`
}

// BatchItem is the per-email outcome of a batch run
type BatchItem struct {
	Index  int
	Result *DetectionResult
	Err    error
}

// Succeeded returns the successful results of a batch in input order
func Succeeded(items []BatchItem) []*DetectionResult {
	results := make([]*DetectionResult, 0, len(items))
	for _, item := range items {
		if item.Err == nil && item.Result != nil {
			results = append(results, item.Result)
		}
	}
	return results
}

// CacheEntry is a cached LLM assessment
type CacheEntry struct {
	Key        string
	Assessment *ThreatAssessment
	CreatedAt  time.Time
	// ExpiresAt is zero for entries that never expire
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
