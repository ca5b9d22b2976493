package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// PostgresCache is a PostgreSQL implementation of the CacheRepository interface
type PostgresCache struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	janitor *janitor
}

// NewPostgresCache connects to Postgres and creates the cache table
func NewPostgresCache(connString string, logger *zap.Logger, cleanupFreq time.Duration) (*PostgresCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	_, err = pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS assessment_cache (
		cache_key TEXT PRIMARY KEY,
		assessment JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ
	);`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed (assessment_cache): %w", err)
	}

	cache := &PostgresCache{
		pool:   pool,
		logger: logger,
	}
	cache.janitor = newJanitor(cleanupFreq, logger, cache.Cleanup)

	return cache, nil
}

// Get retrieves a cached entry by key
func (c *PostgresCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var data []byte
	var createdAt time.Time
	var expiresAt *time.Time

	err := c.pool.QueryRow(ctx, `
		SELECT assessment, created_at, expires_at
		FROM assessment_cache
		WHERE cache_key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, key).Scan(&data, &createdAt, &expiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	assessment, err := decodeAssessment(data)
	if err != nil {
		return nil, err
	}

	entry := &core.CacheEntry{
		Key:        key,
		Assessment: assessment,
		CreatedAt:  createdAt,
	}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	return entry, nil
}

// Set stores a cache entry
func (c *PostgresCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	data, err := encodeAssessment(entry.Assessment)
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		expiresAt = &entry.ExpiresAt
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO assessment_cache (cache_key, assessment, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			assessment = EXCLUDED.assessment,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, entry.Key, data, entry.CreatedAt, expiresAt)

	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM assessment_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *PostgresCache) Cleanup(ctx context.Context) error {
	tag, err := c.pool.Exec(ctx, `
		DELETE FROM assessment_cache
		WHERE expires_at IS NOT NULL AND expires_at <= NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", tag.RowsAffected()))
	return nil
}

// Stop stops the background cleanup task and closes the pool
func (c *PostgresCache) Stop() {
	if c.janitor.stop() {
		c.pool.Close()
	}
}
