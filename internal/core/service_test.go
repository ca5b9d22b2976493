package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeParser struct{}

func (fakeParser) Parse(email *Email) *EmailRecord {
	if email.Body == "panic" {
		panic("parser exploded")
	}
	var urls []string
	for _, f := range strings.Fields(email.Body) {
		if strings.HasPrefix(f, "http") {
			urls = append(urls, f)
		}
	}
	return &EmailRecord{SenderRaw: email.Sender, Subject: email.Subject, Body: email.Body, URLs: urls}
}

type fakeValidator struct{}

func (fakeValidator) IsSuspicious(u string) bool { return strings.Contains(u, "bad") }

func (fakeValidator) DomainInfo(u string) *DomainInfo { return &DomainInfo{URL: u} }

type fakeMatcher struct{ threats []string }

func (m fakeMatcher) Check(*EmailRecord) []string { return m.threats }

// fakeScorer passes the LLM score through and adds 10 per pattern
type fakeScorer struct{}

func (fakeScorer) Calculate(gpt, patterns, urls int, _ *EmailRecord) int {
	return min(gpt+patterns*10, 100)
}

func (fakeScorer) RiskFactors(int, *EmailRecord, int) []string { return nil }

type stubLLM struct {
	calls      atomic.Int32
	assessment *ThreatAssessment
	err        error
	block      bool
}

func (s *stubLLM) AssessEmail(ctx context.Context, _ *Email) (*ThreatAssessment, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	a := *s.assessment
	return &a, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]*CacheEntry{}} }

func (c *mapCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	return nil, ErrCacheMiss
}

func (c *mapCache) Set(_ context.Context, e *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key] = e
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Cleanup(context.Context) error { return nil }

type countingRecorder struct {
	mu        sync.Mutex
	levels    []RiskLevel
	llmFails  int
	hits      int
	misses    int
	batchFail int
}

func (r *countingRecorder) AnalysisCompleted(l RiskLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, l)
}

func (r *countingRecorder) LLMFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmFails++
}

func (r *countingRecorder) CacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) BatchItemFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchFail++
}

var fixedNow = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestEngine(llm LLMClient, cache CacheRepository, threats []string, cfg EngineConfig) *DetectionEngine {
	cfg.Now = func() time.Time { return fixedNow }
	cfg.CacheEnabled = cache != nil
	return NewDetectionEngine(fakeParser{}, fakeValidator{}, fakeMatcher{threats: threats}, fakeScorer{}, llm, cache, zap.NewNop(), cfg)
}

func TestRiskThresholds(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLow},
		{29, RiskLow},
		{30, RiskMedium},
		{59, RiskMedium},
		{60, RiskHigh},
		{84, RiskHigh},
		{85, RiskCritical},
		{100, RiskCritical},
	}
	for _, tt := range tests {
		if got := th.Level(tt.score); got != tt.want {
			t.Errorf("Level(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestParseRiskLevel(t *testing.T) {
	l, err := ParseRiskLevel(" high ")
	if err != nil || l != RiskHigh {
		t.Errorf("ParseRiskLevel = %v, %v", l, err)
	}
	if _, err := ParseRiskLevel("severe"); err == nil {
		t.Error("expected error for unknown level")
	}
	if !RiskCritical.AtLeast(RiskHigh) || RiskMedium.AtLeast(RiskHigh) {
		t.Error("AtLeast ordering is wrong")
	}
}

func TestAnalyzeCombinesSignals(t *testing.T) {
	llm := &stubLLM{assessment: &ThreatAssessment{Score: 40, Threats: []string{"llm threat"}, Confidence: 0.8}}
	e := newTestEngine(llm, nil, []string{"pattern threat"}, EngineConfig{})

	result, err := e.Analyze(context.Background(), &Email{Sender: "a@b.com", Body: "see http://bad.example http://good.example"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	wantThreats := []string{"pattern threat", "llm threat", "Suspicious URLs detected: 1 found"}
	if !reflect.DeepEqual(result.Threats, wantThreats) {
		t.Errorf("Threats = %v, want %v", result.Threats, wantThreats)
	}
	if !reflect.DeepEqual(result.SuspiciousURLs, []string{"http://bad.example"}) {
		t.Errorf("SuspiciousURLs = %v", result.SuspiciousURLs)
	}
	if len(result.URLDetails) != 1 || result.URLDetails[0].URL != "http://bad.example" {
		t.Errorf("URLDetails should describe only the suspicious URL, got %+v", result.URLDetails)
	}
	if result.Score != 50 || result.RiskLevel != RiskMedium {
		t.Errorf("score %d level %s, want 50 MEDIUM", result.Score, result.RiskLevel)
	}
	if result.Timestamp != "2030-01-02T03:04:05Z" {
		t.Errorf("Timestamp = %q", result.Timestamp)
	}
	if !reflect.DeepEqual(result.Recommendations, []string{"Hover over links to verify destinations"}) {
		t.Errorf("Recommendations = %v", result.Recommendations)
	}
}

func TestAnalyzeFallback(t *testing.T) {
	tests := []struct {
		name    string
		llm     LLMClient
		timeout time.Duration
		cause   string
	}{
		{"error", &stubLLM{err: errors.New("quota exceeded")}, 0, "Analysis error: quota exceeded"},
		{"timeout", &stubLLM{block: true}, 10 * time.Millisecond, "Analysis error: context deadline exceeded"},
		{"absent", nil, 0, "Analysis error: no LLM assessor configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			e := newTestEngine(tt.llm, nil, nil, EngineConfig{LLMTimeout: tt.timeout})
			e.SetMetrics(rec)

			result, err := e.Analyze(context.Background(), &Email{Sender: "a@b.com", Body: "hi"})
			if err != nil {
				t.Fatalf("LLM failure must not surface: %v", err)
			}
			if result.Analysis.Score != 50 || result.Analysis.Confidence != 0.5 {
				t.Errorf("unexpected fallback: %+v", result.Analysis)
			}
			if !reflect.DeepEqual(result.Analysis.Threats, []string{tt.cause}) {
				t.Errorf("fallback threats = %v, want %q", result.Analysis.Threats, tt.cause)
			}
			if rec.llmFails != 1 {
				t.Errorf("expected one LLM failure recorded, got %d", rec.llmFails)
			}
		})
	}
}

func TestAnalyzeCache(t *testing.T) {
	llm := &stubLLM{assessment: &ThreatAssessment{Score: 20, Confidence: 0.9}}
	cache := newMapCache()
	rec := &countingRecorder{}
	e := newTestEngine(llm, cache, nil, EngineConfig{CacheTTL: time.Hour})
	e.SetMetrics(rec)

	email := &Email{Sender: "a@b.com", Subject: "s", Body: "hello"}
	first, _ := e.Analyze(context.Background(), email)
	second, _ := e.Analyze(context.Background(), email)

	if llm.calls.Load() != 1 {
		t.Errorf("expected 1 LLM call, got %d", llm.calls.Load())
	}
	if first.Score != second.Score || first.RiskLevel != second.RiskLevel {
		t.Error("cached analysis should be identical")
	}
	if rec.hits != 1 || rec.misses != 1 {
		t.Errorf("hits %d misses %d, want 1 and 1", rec.hits, rec.misses)
	}

	entry := cache.entries[CacheKey(email)]
	if entry == nil || !entry.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("unexpected cache entry: %+v", entry)
	}
}

func TestAnalyzeFailuresNotCached(t *testing.T) {
	llm := &stubLLM{err: errors.New("down")}
	cache := newMapCache()
	e := newTestEngine(llm, cache, nil, EngineConfig{})

	email := &Email{Sender: "a@b.com", Body: "x"}
	_, _ = e.Analyze(context.Background(), email)
	_, _ = e.Analyze(context.Background(), email)

	if len(cache.entries) != 0 {
		t.Error("fallback assessments must not be cached")
	}
	if llm.calls.Load() != 2 {
		t.Errorf("expected the LLM to be retried, got %d calls", llm.calls.Load())
	}
}

func TestAnalyzeErrors(t *testing.T) {
	e := newTestEngine(nil, nil, nil, EngineConfig{})

	if _, err := e.Analyze(context.Background(), nil); !errors.Is(err, ErrNilEmail) {
		t.Errorf("expected ErrNilEmail, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Analyze(ctx, &Email{Sender: "a@b.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		score, urls int
		want        []string
	}{
		{10, 0, []string{"Email appears safe but remain vigilant"}},
		{60, 0, []string{"Email appears safe but remain vigilant"}},
		{61, 0, []string{"Do not click any links in this email", "Verify sender through official channels"}},
		{81, 1, []string{
			"Do not click any links in this email",
			"Verify sender through official channels",
			"Hover over links to verify destinations",
			"Report this email to your security team",
			"Delete this email immediately",
		}},
	}
	for _, tt := range tests {
		if got := recommendations(tt.score, tt.urls); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("recommendations(%d, %d) = %v, want %v", tt.score, tt.urls, got, tt.want)
		}
	}
}

func TestBatchIsolation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		llm := &stubLLM{assessment: &ThreatAssessment{Score: 10, Confidence: 1}}
		rec := &countingRecorder{}
		e := newTestEngine(llm, nil, nil, EngineConfig{BatchWorkers: workers})
		e.SetMetrics(rec)

		emails := []*Email{
			{Sender: "a@b.com", Body: "one"},
			nil,
			{Sender: "c@d.com", Body: "panic"},
			{Sender: "e@f.com", Body: "four"},
		}

		items := e.Batch(context.Background(), emails)
		if len(items) != len(emails) {
			t.Fatalf("workers=%d: expected %d items, got %d", workers, len(emails), len(items))
		}
		for i, item := range items {
			if item.Index != i {
				t.Errorf("workers=%d: item %d has index %d", workers, i, item.Index)
			}
		}
		if items[0].Err != nil || items[3].Err != nil {
			t.Errorf("workers=%d: healthy items failed: %v, %v", workers, items[0].Err, items[3].Err)
		}
		if !errors.Is(items[1].Err, ErrNilEmail) {
			t.Errorf("workers=%d: expected ErrNilEmail, got %v", workers, items[1].Err)
		}
		if items[2].Err == nil || items[2].Result != nil {
			t.Errorf("workers=%d: expected panic to become a failed item", workers)
		}
		if got := Succeeded(items); len(got) != 2 {
			t.Errorf("workers=%d: expected 2 successes, got %d", workers, len(got))
		}
		if rec.batchFail != 2 {
			t.Errorf("workers=%d: expected 2 recorded failures, got %d", workers, rec.batchFail)
		}
	}
}

func TestBatchCancelled(t *testing.T) {
	e := newTestEngine(nil, nil, nil, EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := e.Batch(ctx, []*Email{{Sender: "a@b.com"}, {Sender: "c@d.com"}})
	for _, item := range items {
		if !errors.Is(item.Err, context.Canceled) {
			t.Errorf("item %d: expected cancellation, got %v", item.Index, item.Err)
		}
	}
}

func TestCacheKey(t *testing.T) {
	long := strings.Repeat("é", 300)
	a := CacheKey(&Email{Sender: "s", Subject: "t", Body: long})
	b := CacheKey(&Email{Sender: "s", Subject: "t", Body: long + "different tail"})
	if a != b {
		t.Error("body beyond 200 runes must not affect the key")
	}
	if a == CacheKey(&Email{Sender: "s2", Subject: "t", Body: long}) {
		t.Error("sender must affect the key")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256 key, got %q", a)
	}
}
