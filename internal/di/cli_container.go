package di

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/ports"
)

// CLI commands
const (
	CommandAnalyze = "analyze"
	CommandBatch   = "batch"
)

// ErrUsage is returned when the command line cannot be understood
var ErrUsage = errors.New("usage: phishing-detector analyze -email FILE | batch -directory DIR [flags]")

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	Command string

	// Input and output flags
	EmailFile string
	Directory string
	Format    string
	Output    string

	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Detection flags
	RulesFile string
	Workers   int

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses the command and its flags from args, which excludes the
// program name
func ParseFlags(args []string) (*CLIFlags, error) {
	if len(args) == 0 {
		return nil, ErrUsage
	}

	flags := &CLIFlags{Command: args[0]}
	if flags.Command != CommandAnalyze && flags.Command != CommandBatch {
		return nil, fmt.Errorf("unknown command %q: %w", flags.Command, ErrUsage)
	}

	fs := flag.NewFlagSet(flags.Command, flag.ContinueOnError)

	fs.StringVar(&flags.EmailFile, "email", "", "Path to email file (.txt line format or .eml)")
	fs.StringVar(&flags.Directory, "directory", "", "Directory with .txt or .eml emails")
	fs.StringVar(&flags.Format, "format", "text", "Report format (text, json, html)")
	fs.StringVar(&flags.Output, "output", "", "Output file for the report or batch results")

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "none", "LLM provider (openai, gemini, bedrock, none)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 500, "Maximum tokens for LLM response")
	fs.Float64Var(&flags.Temperature, "temperature", 0.3, "Temperature for LLM generation")
	fs.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 1500, "Maximum email body size to send to LLM")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	fs.StringVar(&flags.RulesFile, "rules", "", "YAML file replacing the built-in rule tables")
	fs.IntVar(&flags.Workers, "workers", 4, "Concurrent analyses in batch mode")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	switch {
	case flags.Command == CommandAnalyze && flags.EmailFile == "":
		return nil, errors.New("-email is required for analyze")
	case flags.Command == CommandBatch && flags.Directory == "":
		return nil, errors.New("-directory is required for batch")
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
			applyCLISettings(cfg, flags)
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// The CLI only keeps a per-run memory cache so duplicates in a batch
	// reach the LLM once
	if err := container.Provide(func(cfg *config.Config, f *factory.CacheFactory) (core.CacheRepository, error) {
		if flags.ConfigFile == "" {
			cfg.Set("cache.type", "memory")
			cfg.Set("cache.cleanup_frequency", "0")
		}
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyCLISettings forces the settings the CLI always owns
func applyCLISettings(cfg *config.Config, flags *CLIFlags) {
	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)
	cfg.Set("report.format", flags.Format)
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	v.Set("detector.rules_file", flags.RulesFile)
	v.Set("engine.batch_workers", flags.Workers)

	cfg := config.NewFromViper(v)
	applyCLISettings(cfg, flags)
	return cfg
}
