package factory

import (
	"fmt"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/parser"
	"github.com/mikey/phishing-detector/internal/patterns"
	"github.com/mikey/phishing-detector/internal/rules"
	"github.com/mikey/phishing-detector/internal/scoring"
	"github.com/mikey/phishing-detector/internal/urlcheck"
	"github.com/mikey/phishing-detector/internal/whitelist"
	"go.uber.org/zap"
)

// DetectorFactory assembles the detection engine from its rule-driven parts
type DetectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDetectorFactory creates a new detector factory
func NewDetectorFactory(cfg *config.Config, logger *zap.Logger) *DetectorFactory {
	return &DetectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// LoadRules reads the rule tables and applies the list overrides
func (f *DetectorFactory) LoadRules() (*rules.Rules, error) {
	d := f.cfg.GetDetector()

	r, err := rules.Load(d.RulesFile)
	if err != nil {
		return nil, err
	}
	if d.RulesFile != "" {
		f.logger.Info("Loaded rule tables", zap.String("file", d.RulesFile))
	}
	return r.WithOverrides(d.TrustedDomains, d.SuspiciousTLDs, d.URLShorteners), nil
}

// CreateEngine builds the detection engine. llmClient and cache may be nil.
func (f *DetectorFactory) CreateEngine(llmClient core.LLMClient, cache core.CacheRepository, recorder core.MetricsRecorder) (*core.DetectionEngine, error) {
	if err := f.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r, err := f.LoadRules()
	if err != nil {
		return nil, err
	}

	d := f.cfg.GetDetector()
	weights := scoring.Weights{
		GPT:      d.WeightGPT,
		Patterns: d.WeightPatterns,
		URLs:     d.WeightURLs,
		Sender:   d.WeightSender,
	}
	trusted := whitelist.NewChecker(r.TrustedDomains, f.logger)
	f.logger.Info("Detection rules ready",
		zap.Int("trusted_domains", len(trusted.Domains())),
		zap.Int("suspicious_tlds", len(r.SuspiciousTLDs)),
		zap.Int("url_shorteners", len(r.URLShorteners)))
	cacheCfg := f.cfg.GetCache()

	engine := core.NewDetectionEngine(
		parser.New(r, f.logger),
		urlcheck.New(r, f.logger),
		patterns.New(r, f.logger),
		scoring.New(weights, r, trusted, f.logger),
		llmClient,
		cache,
		f.logger,
		core.EngineConfig{
			Thresholds: core.RiskThresholds{
				Low:    d.ThresholdLow,
				Medium: d.ThresholdMedium,
				High:   d.ThresholdHigh,
			},
			LLMTimeout:   f.cfg.GetLLM().Timeout,
			CacheEnabled: cacheCfg.Enabled,
			CacheTTL:     cacheCfg.TTL,
			BatchWorkers: d.BatchWorkers,
		},
	)
	engine.SetMetrics(recorder)
	return engine, nil
}
