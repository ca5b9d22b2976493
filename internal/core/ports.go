package core

import (
	"context"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// AssessEmail asks the model for a phishing assessment of an email
	AssessEmail(ctx context.Context, email *Email) (*ThreatAssessment, error)
}

// CacheRepository defines the interface for caching LLM assessments
type CacheRepository interface {
	// Get retrieves a cached entry by key
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// EmailParser normalizes raw email input
type EmailParser interface {
	Parse(email *Email) *EmailRecord
}

// URLValidator classifies a single URL
type URLValidator interface {
	IsSuspicious(rawURL string) bool
	DomainInfo(rawURL string) *DomainInfo
}

// PatternMatcher runs the rule sets over a parsed email
type PatternMatcher interface {
	Check(record *EmailRecord) []string
}

// RiskScorer fuses the detection signals into one score
type RiskScorer interface {
	Calculate(gptScore, patternMatches, suspiciousURLs int, record *EmailRecord) int
	RiskFactors(score int, record *EmailRecord, suspiciousURLs int) []string
}

// MetricsRecorder receives engine events
type MetricsRecorder interface {
	AnalysisCompleted(level RiskLevel)
	LLMFailed()
	CacheLookup(hit bool)
	BatchItemFailed()
}

type nopRecorder struct{}

func (nopRecorder) AnalysisCompleted(RiskLevel) {}
func (nopRecorder) LLMFailed()                  {}
func (nopRecorder) CacheLookup(bool)            {}
func (nopRecorder) BatchItemFailed()            {}
