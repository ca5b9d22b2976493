package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// janitor runs a cache's Cleanup on a ticker until stopped
type janitor struct {
	stopCh chan struct{}
	once   sync.Once
}

// newJanitor starts the cleanup loop. A frequency of 0 starts nothing.
func newJanitor(freq time.Duration, logger *zap.Logger, cleanup func(context.Context) error) *janitor {
	j := &janitor{stopCh: make(chan struct{})}
	if freq > 0 {
		go j.run(freq, logger, cleanup)
	}
	return j
}

func (j *janitor) run(freq time.Duration, logger *zap.Logger, cleanup func(context.Context) error) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-j.stopCh:
			return
		}
	}
}

// stop reports whether this call was the one that stopped the loop
func (j *janitor) stop() bool {
	stopped := false
	j.once.Do(func() {
		close(j.stopCh)
		stopped = true
	})
	return stopped
}
