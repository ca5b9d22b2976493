package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/di"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/report"
	"go.uber.org/zap"
)

// batchEntry is one line of the batch results file
type batchEntry struct {
	File  string         `json:"file"`
	Score int            `json:"score"`
	Risk  core.RiskLevel `json:"risk"`
	Error string         `json:"error,omitempty"`
}

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	engine *core.DetectionEngine,
	emailFilter ports.EmailFilter,
	llmClient core.LLMClient,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	defer func() {
		if closer, ok := llmClient.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close LLM client", zap.Error(err))
			}
		}
		if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flags.Command {
	case di.CommandAnalyze:
		return analyze(ctx, flags, emailFilter)
	case di.CommandBatch:
		return batch(ctx, flags, logger, engine)
	}
	return di.ErrUsage
}

func analyze(ctx context.Context, flags *di.CLIFlags, emailFilter ports.EmailFilter) error {
	email, err := loadEmail(flags.EmailFile)
	if err != nil {
		return err
	}

	result, err := emailFilter.ProcessEmail(ctx, email)
	if err != nil {
		return err
	}

	if flags.Output == "" {
		return nil
	}

	rendered, err := report.Generate(result, outputFormat(flags.Output))
	if err != nil {
		return err
	}
	if err := os.WriteFile(flags.Output, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("\nReport saved to %s\n", flags.Output)
	return nil
}

func batch(ctx context.Context, flags *di.CLIFlags, logger *zap.Logger, engine *core.DetectionEngine) error {
	files, err := emailFiles(flags.Directory)
	if err != nil {
		return err
	}

	entries := make([]batchEntry, len(files))
	emails := make([]*core.Email, 0, len(files))
	index := make([]int, 0, len(files))
	for i, file := range files {
		entries[i].File = file
		email, err := loadEmail(file)
		if err != nil {
			logger.Warn("Skipping unreadable email", zap.String("file", file), zap.Error(err))
			entries[i].Error = err.Error()
			continue
		}
		emails = append(emails, email)
		index = append(index, i)
	}

	items := engine.Batch(ctx, emails)
	for _, item := range items {
		entry := &entries[index[item.Index]]
		if item.Err != nil {
			entry.Error = item.Err.Error()
			continue
		}
		entry.Score = item.Result.Score
		entry.Risk = item.Result.RiskLevel
	}

	results := core.Succeeded(items)
	highRisk := 0
	for _, r := range results {
		if r.RiskLevel.AtLeast(core.RiskHigh) {
			highRisk++
		}
	}

	fmt.Printf("\nProcessed %d emails\n", len(results))
	fmt.Printf("High risk emails: %d\n\n", highRisk)
	fmt.Println(report.Summary(results))

	if flags.Output == "" {
		return nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(flags.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Printf("Results saved to %s\n", flags.Output)
	return nil
}

// outputFormat picks the saved report format from the file extension
func outputFormat(path string) report.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return report.FormatHTML
	case ".txt":
		return report.FormatText
	default:
		return report.FormatJSON
	}
}
