package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCacheMiss is returned by cache repositories when no entry exists for a key
var ErrCacheMiss = errors.New("cache entry not found")

// errNoAssessor is the fallback cause when no LLM client is configured
var errNoAssessor = errors.New("no LLM assessor configured")

const cacheKeyBodyRunes = 200

// EngineConfig holds the tunables of the detection engine
type EngineConfig struct {
	Thresholds   RiskThresholds
	LLMTimeout   time.Duration
	CacheEnabled bool
	// CacheTTL of zero keeps entries forever
	CacheTTL     time.Duration
	BatchWorkers int
	// Now overrides the clock used for timestamps
	Now func() time.Time
}

// DetectionEngine coordinates parsing, pattern matching, URL validation, the
// LLM assessment and score fusion
type DetectionEngine struct {
	parser    EmailParser
	validator URLValidator
	matcher   PatternMatcher
	scorer    RiskScorer
	llmClient LLMClient
	cache     CacheRepository
	metrics   MetricsRecorder
	logger    *zap.Logger

	thresholds   RiskThresholds
	llmTimeout   time.Duration
	cacheEnabled bool
	cacheTTL     time.Duration
	batchWorkers int
	now          func() time.Time
}

// NewDetectionEngine creates a new detection engine. llmClient and cache may
// be nil: a missing client always yields the fallback assessment and a missing
// cache disables caching.
func NewDetectionEngine(
	parser EmailParser,
	validator URLValidator,
	matcher PatternMatcher,
	scorer RiskScorer,
	llmClient LLMClient,
	cache CacheRepository,
	logger *zap.Logger,
	cfg EngineConfig,
) *DetectionEngine {
	if cfg.Thresholds == (RiskThresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.BatchWorkers < 1 {
		cfg.BatchWorkers = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &DetectionEngine{
		parser:       parser,
		validator:    validator,
		matcher:      matcher,
		scorer:       scorer,
		llmClient:    llmClient,
		cache:        cache,
		metrics:      nopRecorder{},
		logger:       logger,
		thresholds:   cfg.Thresholds,
		llmTimeout:   cfg.LLMTimeout,
		cacheEnabled: cfg.CacheEnabled && cache != nil,
		cacheTTL:     cfg.CacheTTL,
		batchWorkers: cfg.BatchWorkers,
		now:          cfg.Now,
	}
}

// SetMetrics installs a metrics recorder
func (e *DetectionEngine) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = nopRecorder{}
	}
	e.metrics = m
}

// RiskLevel maps a score to its tier
func (e *DetectionEngine) RiskLevel(score int) RiskLevel {
	return e.thresholds.Level(score)
}

// Analyze scores a single email. LLM failures never surface here; the only
// error cases are a nil email and a cancelled context.
func (e *DetectionEngine) Analyze(ctx context.Context, email *Email) (*DetectionResult, error) {
	if email == nil {
		return nil, ErrNilEmail
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	logger := e.logger.With(zap.String("analysis_id", uuid.NewString()))

	record := e.parser.Parse(email)

	suspicious := make([]string, 0, len(record.URLs))
	var details []*DomainInfo
	for _, u := range record.URLs {
		if e.validator.IsSuspicious(u) {
			suspicious = append(suspicious, u)
			if info := e.validator.DomainInfo(u); info != nil {
				details = append(details, info)
			}
		}
	}

	patternThreats := e.matcher.Check(record)
	assessment := e.assess(ctx, email, logger)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	threats := make([]string, 0, len(patternThreats)+len(assessment.Threats)+1)
	threats = append(threats, patternThreats...)
	threats = append(threats, assessment.Threats...)
	if len(suspicious) > 0 {
		threats = append(threats, fmt.Sprintf("Suspicious URLs detected: %d found", len(suspicious)))
	}

	score := e.scorer.Calculate(assessment.Score, len(patternThreats), len(suspicious), record)
	level := e.thresholds.Level(score)

	result := &DetectionResult{
		Score:           score,
		RiskLevel:       level,
		Threats:         threats,
		SuspiciousURLs:  suspicious,
		Recommendations: recommendations(score, len(suspicious)),
		Analysis:        assessment,
		Timestamp:       e.now().UTC().Format(time.RFC3339),
		RiskFactors:     e.scorer.RiskFactors(score, record, len(suspicious)),
		URLDetails:      details,
	}

	e.metrics.AnalysisCompleted(level)
	logger.Info("Email analyzed",
		zap.String("sender", email.Sender),
		zap.Int("score", score),
		zap.String("risk_level", string(level)),
		zap.Int("threats", len(threats)),
		zap.Int("suspicious_urls", len(suspicious)))

	return result, nil
}

// assess returns the LLM signal for an email, consulting the cache first.
// Any failure yields the fallback assessment, which is never cached.
func (e *DetectionEngine) assess(ctx context.Context, email *Email, logger *zap.Logger) *ThreatAssessment {
	if e.llmClient == nil {
		e.metrics.LLMFailed()
		return FallbackAssessment(errNoAssessor)
	}

	key := CacheKey(email)

	if e.cacheEnabled {
		entry, err := e.cache.Get(ctx, key)
		switch {
		case err == nil && entry != nil && entry.Assessment != nil:
			e.metrics.CacheLookup(true)
			logger.Debug("Cache hit for assessment", zap.String("key", key))
			return cloneAssessment(entry.Assessment)
		case err != nil && !errors.Is(err, ErrCacheMiss):
			logger.Warn("Cache lookup failed", zap.Error(err))
		}
		e.metrics.CacheLookup(false)
	}

	llmCtx := ctx
	if e.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
	}

	assessment, err := e.llmClient.AssessEmail(llmCtx, email)
	if err == nil && assessment == nil {
		err = errors.New("empty assessment")
	}
	if err != nil {
		e.metrics.LLMFailed()
		logger.Warn("LLM assessment failed, using fallback", zap.Error(err))
		return FallbackAssessment(err)
	}

	if e.cacheEnabled {
		now := e.now()
		entry := &CacheEntry{
			Key:        key,
			Assessment: cloneAssessment(assessment),
			CreatedAt:  now,
		}
		if e.cacheTTL > 0 {
			entry.ExpiresAt = now.Add(e.cacheTTL)
		}
		if err := e.cache.Set(ctx, entry); err != nil {
			logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return assessment
}

// Batch analyzes emails with bounded fan-out. Every input yields exactly one
// item, in input order; a failed item never affects the others.
func (e *DetectionEngine) Batch(ctx context.Context, emails []*Email) []BatchItem {
	items := make([]BatchItem, len(emails))

	var g errgroup.Group
	g.SetLimit(e.batchWorkers)

	for i, email := range emails {
		i, email := i, email
		g.Go(func() error {
			items[i] = e.analyzeItem(ctx, i, email)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (e *DetectionEngine) analyzeItem(ctx context.Context, index int, email *Email) (item BatchItem) {
	item.Index = index

	defer func() {
		if r := recover(); r != nil {
			item.Result = nil
			item.Err = fmt.Errorf("analysis panicked: %v", r)
		}
		if item.Err != nil {
			e.metrics.BatchItemFailed()
			e.logger.Warn("Batch item failed",
				zap.Int("index", index),
				zap.Error(item.Err))
		}
	}()

	result, err := e.Analyze(ctx, email)
	if err != nil {
		item.Err = fmt.Errorf("failed to analyze email %d: %w", index, err)
		return item
	}
	item.Result = result
	return item
}

// CacheKey derives the LLM cache key from the sender, subject and the first
// 200 runes of the body
func CacheKey(email *Email) string {
	body := []rune(email.Body)
	if len(body) > cacheKeyBodyRunes {
		body = body[:cacheKeyBodyRunes]
	}
	sum := sha256.Sum256([]byte(email.Sender + ":" + email.Subject + ":" + string(body)))
	return hex.EncodeToString(sum[:])
}

func recommendations(score, suspiciousURLs int) []string {
	var recs []string

	if score > 60 {
		recs = append(recs,
			"Do not click any links in this email",
			"Verify sender through official channels")
	}
	if suspiciousURLs > 0 {
		recs = append(recs, "Hover over links to verify destinations")
	}
	if score > 80 {
		recs = append(recs,
			"Report this email to your security team",
			"Delete this email immediately")
	}
	if len(recs) == 0 {
		recs = append(recs, "Email appears safe but remain vigilant")
	}

	return recs
}

func cloneAssessment(a *ThreatAssessment) *ThreatAssessment {
	c := *a
	c.Threats = slices.Clone(a.Threats)
	c.Indicators = slices.Clone(a.Indicators)
	return &c
}
