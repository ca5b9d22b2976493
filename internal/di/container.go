package di

import (
	"context"

	"go.uber.org/dig"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/metrics"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the long-running filter
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
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

// provideCommon registers everything both containers share once config and
// logger are available. The cache repository is left to the caller.
func provideCommon(container *dig.Container) error {
	providers := []interface{}{
		utils.NewTextProcessor,
		metrics.NewRecorder,
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewDetectorFactory,
		factory.NewFilterFactory,
		func(f *factory.LLMFactory) (core.LLMClient, error) {
			return f.CreateLLMClient(context.Background())
		},
		func(f *factory.DetectorFactory, llmClient core.LLMClient, cache core.CacheRepository, recorder *metrics.Recorder) (*core.DetectionEngine, error) {
			return f.CreateEngine(llmClient, cache, recorder)
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}
