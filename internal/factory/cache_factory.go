package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phishing-detector/internal/adapters/cache"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository creates the configured cache. A disabled cache
// yields a nil repository.
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	cacheCfg := f.cfg.GetCache()
	if !cacheCfg.Enabled {
		return nil, nil
	}

	f.logger.Info("Creating LLM response cache",
		zap.String("type", cacheCfg.Type),
		zap.Duration("ttl", cacheCfg.TTL))

	var (
		repo core.CacheRepository
		err  error
	)
	switch cacheCfg.Type {
	case "memory":
		repo = cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency, cacheCfg.MaxEntries)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		repo, err = nonNil(cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency))
	case "mysql":
		repo, err = nonNil(cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency))
	case "postgres":
		repo, err = nonNil(cache.NewPostgresCache(cacheCfg.PostgresDSN, f.logger, cacheCfg.CleanupFrequency))
	case "redis":
		repo, err = nonNil(cache.NewRedisCache(cacheCfg.RedisAddr, cacheCfg.RedisPassword, cacheCfg.RedisDB, f.logger))
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cacheCfg.Type, err)
	}
	return repo, nil
}

// nonNil keeps a failed constructor's typed nil pointer out of the interface
func nonNil[T core.CacheRepository](repo T, err error) (core.CacheRepository, error) {
	if err != nil {
		return nil, err
	}
	return repo, nil
}
