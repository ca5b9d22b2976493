package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
)

// ErrNotFound is returned when a cache entry is missing or expired
var ErrNotFound = core.ErrCacheMiss

func encodeAssessment(a *core.ThreatAssessment) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assessment: %w", err)
	}
	return data, nil
}

func decodeAssessment(data []byte) (*core.ThreatAssessment, error) {
	var a core.ThreatAssessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	return &a, nil
}

// expiryUnix stores "never expires" as 0
func expiryUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func expiryTime(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
