package filter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/report"
	"go.uber.org/zap"
)

// CliFilter analyzes emails from the command line and prints a report
type CliFilter struct {
	engine  *core.DetectionEngine
	logger  *zap.Logger
	format  report.Format
	out     io.Writer
	verbose bool
}

// NewCliFilter creates a new CLI filter writing reports to out
func NewCliFilter(engine *core.DetectionEngine, logger *zap.Logger, format report.Format, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		engine:  engine,
		logger:  logger,
		format:  format,
		out:     out,
		verbose: verbose,
	}
}

// ProcessEmail analyzes an email and writes the rendered report
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if f.verbose {
		fmt.Fprintf(f.out, "=== Email Summary ===\n")
		fmt.Fprintf(f.out, "From: %s\n", email.Sender)
		fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
		fmt.Fprintf(f.out, "Body length: %d bytes\n\n", len(email.Body))
	}

	start := time.Now()
	result, err := f.engine.Analyze(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}

	rendered, err := report.Generate(result, f.format)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(f.out, rendered)

	if f.verbose {
		for _, factor := range result.RiskFactors {
			fmt.Fprintf(f.out, "Risk factor: %s\n", factor)
		}
		for _, info := range result.URLDetails {
			fmt.Fprintf(f.out, "Suspicious URL: %s (domain %s, registrable %s, unicode %s, https %t, ip %t, shortened %t, punycode %t)\n",
				info.URL, info.Domain, info.RegistrableDomain, info.UnicodeDomain,
				info.IsHTTPS, info.IsIP, info.IsShortened, info.IsPunycode)
		}
		fmt.Fprintf(f.out, "Processing time: %v\n", time.Since(start))
	}

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
