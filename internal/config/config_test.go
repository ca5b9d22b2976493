package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	llm := cfg.GetLLM()
	if llm.Provider != "openai" || llm.Timeout != 30*time.Second {
		t.Errorf("unexpected LLM defaults %+v", llm)
	}

	d := cfg.GetDetector()
	if d.ThresholdLow != 30 || d.ThresholdMedium != 60 || d.ThresholdHigh != 85 {
		t.Errorf("unexpected thresholds %+v", d)
	}
	if d.WeightGPT != 0.4 || d.WeightPatterns != 0.25 || d.WeightURLs != 0.2 || d.WeightSender != 0.15 {
		t.Errorf("unexpected weights %+v", d)
	}
	if d.BatchWorkers != 1 {
		t.Errorf("expected sequential batch default, got %d", d.BatchWorkers)
	}

	c := cfg.GetCache()
	if !c.Enabled || c.Type != "memory" || c.TTL != 0 || c.MaxEntries != 0 {
		t.Errorf("unexpected cache defaults %+v", c)
	}

	s := cfg.GetServer()
	if s.BlockLevel != "CRITICAL" || s.ScoreHeader != "X-Phishing-Score" || s.PostfixPort != 10026 {
		t.Errorf("unexpected server defaults %+v", s)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: Bedrock
  timeout: 5s
detector:
  thresholds:
    low: 20
  trusted_domains: [example.org]
cache:
  type: redis
  ttl: 24h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile failed: %v", err)
	}

	if llm := cfg.GetLLM(); llm.Provider != "bedrock" || llm.Timeout != 5*time.Second {
		t.Errorf("unexpected LLM config %+v", llm)
	}
	d := cfg.GetDetector()
	if d.ThresholdLow != 20 || d.ThresholdMedium != 60 {
		t.Errorf("file values should merge with defaults, got %+v", d)
	}
	if len(d.TrustedDomains) != 1 || d.TrustedDomains[0] != "example.org" {
		t.Errorf("unexpected trusted domains %v", d.TrustedDomains)
	}
	if c := cfg.GetCache(); c.Type != "redis" || c.TTL != 24*time.Hour {
		t.Errorf("unexpected cache config %+v", c)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PHISHING_ENGINE_BATCH_WORKERS", "8")
	t.Setenv("PHISHING_LLM_PROVIDER", "none")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.GetDetector().BatchWorkers; got != 8 {
		t.Errorf("expected env override of batch workers, got %d", got)
	}
	if got := cfg.GetLLM().Provider; got != "none" {
		t.Errorf("expected env override of provider, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("detector.thresholds.medium", 10)
	if err := cfg.Validate(); err == nil {
		t.Error("expected unordered thresholds to fail validation")
	}

	cfg = NewFromViper(NewEmptyViper())
	cfg.Set("cache.ttl", "forever")
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid duration to fail validation")
	}
}
