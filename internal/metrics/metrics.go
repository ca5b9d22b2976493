// Package metrics exposes detection engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements core.MetricsRecorder on its own registry
type Recorder struct {
	registry      *prometheus.Registry
	analyses      *prometheus.CounterVec
	llmFailures   prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	batchFailures prometheus.Counter
}

var _ core.MetricsRecorder = (*Recorder)(nil)

// NewRecorder creates the counters and registers them with Go runtime and
// process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_analyses_total",
			Help: "Total number of emails analyzed, by risk level",
		}, []string{"risk_level"}),
		llmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishing_llm_failures_total",
			Help: "Total number of LLM assessments replaced by the fallback",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_llm_cache_total",
			Help: "Total number of LLM cache lookups",
		}, []string{"result"}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishing_batch_item_failures_total",
			Help: "Total number of batch items that failed",
		}),
	}

	r.registry.MustRegister(
		r.analyses,
		r.llmFailures,
		r.cacheLookups,
		r.batchFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// AnalysisCompleted counts a finished analysis
func (r *Recorder) AnalysisCompleted(level core.RiskLevel) {
	r.analyses.WithLabelValues(string(level)).Inc()
}

// LLMFailed counts a fallback substitution
func (r *Recorder) LLMFailed() {
	r.llmFailures.Inc()
}

// CacheLookup counts a cache hit or miss
func (r *Recorder) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// BatchItemFailed counts a failed batch item
func (r *Recorder) BatchItemFailed() {
	r.batchFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
