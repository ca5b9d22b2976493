package factory

import (
	"fmt"
	"net/http"
	"os"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/metrics"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/report"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *core.DetectionEngine
	recorder *metrics.Recorder
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, engine *core.DetectionEngine, recorder *metrics.Recorder) *FilterFactory {
	return &FilterFactory{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		recorder: recorder,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	server := f.cfg.GetServer()

	switch server.FilterType {
	case "postfix":
		level, err := core.ParseRiskLevel(server.BlockLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid server.block_level: %w", err)
		}
		return filter.NewPostfixFilter(f.engine, f.logger, filter.PostfixOptions{
			ListenAddr:      server.ListenAddress,
			BlockPhishing:   server.BlockPhishing,
			BlockLevel:      level,
			ScoreHeader:     server.ScoreHeader,
			LevelHeader:     server.LevelHeader,
			ThreatsHeader:   server.ThreatsHeader,
			SubjectPrefix:   server.SubjectPrefix,
			ModifySubject:   server.ModifySubject,
			PostfixAddr:     server.PostfixAddress,
			PostfixPort:     server.PostfixPort,
			PostfixEnabled:  server.PostfixEnabled,
			AnalysisTimeout: f.cfg.GetLLM().Timeout * 2,
		}), nil
	case "http":
		var handler http.Handler
		if f.recorder != nil {
			handler = f.recorder.Handler()
		}
		return filter.NewHTTPFilter(f.engine, f.logger, server.HTTPListenAddress, handler), nil
	case "cli":
		format, err := report.ParseFormat(f.cfg.GetString("report.format"))
		if err != nil {
			return nil, err
		}
		return filter.NewCliFilter(f.engine, f.logger, format, os.Stdout, f.cfg.GetBool("cli.verbose")), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", server.FilterType)
	}
}
