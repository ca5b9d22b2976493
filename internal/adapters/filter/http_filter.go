package filter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/report"
	"go.uber.org/zap"
)

const maxBatchSize = 100

// HTTPFilter serves the detection engine as a JSON API
type HTTPFilter struct {
	engine     *core.DetectionEngine
	logger     *zap.Logger
	listenAddr string
	metrics    http.Handler
	server     *http.Server
	started    time.Time
}

// analyzeRequest is the body of POST /analyze and one entry of POST /batch
type analyzeRequest struct {
	Sender  string            `json:"sender" form:"sender" binding:"required"`
	Subject string            `json:"subject" form:"subject"`
	Body    string            `json:"body" form:"body" binding:"required"`
	Headers map[string]string `json:"headers" form:"-"`
}

type batchRequest struct {
	Emails []*core.Email `json:"emails" binding:"required"`
}

// detailedResult adds the per-URL host details to a result for ?details=1
type detailedResult struct {
	*core.DetectionResult
	URLDetails []*core.DomainInfo `json:"url_details"`
}

type batchItemResponse struct {
	Index  int                   `json:"index"`
	Result *core.DetectionResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// NewHTTPFilter creates the HTTP API. metrics may be nil to disable /metrics.
func NewHTTPFilter(engine *core.DetectionEngine, logger *zap.Logger, listenAddr string, metrics http.Handler) *HTTPFilter {
	return &HTTPFilter{
		engine:     engine,
		logger:     logger,
		listenAddr: listenAddr,
		metrics:    metrics,
		started:    time.Now(),
	}
}

// Router builds the gin engine with all routes
func (f *HTTPFilter) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), f.requestLogger())

	router.GET("/", f.index)
	router.GET("/health", f.health)
	router.POST("/analyze", f.analyze)
	router.POST("/batch", f.batch)
	if f.metrics != nil {
		router.GET("/metrics", gin.WrapH(f.metrics))
	}
	return router
}

// Start starts the HTTP listener
func (f *HTTPFilter) Start() error {
	f.server = &http.Server{
		Addr:              f.listenAddr,
		Handler:           f.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	f.logger.Info("HTTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the listener down
func (f *HTTPFilter) Stop() error {
	if f.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

// ProcessEmail analyzes an email directly
func (f *HTTPFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return f.engine.Analyze(ctx, email)
}

func (f *HTTPFilter) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(f.started).Round(time.Second).String(),
	})
}

func (f *HTTPFilter) analyze(c *gin.Context) {
	format := report.FormatJSON
	if name := c.Query("format"); name != "" {
		parsed, err := report.ParseFormat(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		format = parsed
	}

	var req analyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender and body are required"})
		return
	}

	result, err := f.ProcessEmail(c.Request.Context(), &core.Email{
		Sender:  req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
		Headers: req.Headers,
	})
	if err != nil {
		f.writeError(c, err)
		return
	}

	if format == report.FormatJSON {
		if c.Query("details") == "1" {
			details := result.URLDetails
			if details == nil {
				details = []*core.DomainInfo{}
			}
			c.JSON(http.StatusOK, detailedResult{DetectionResult: result, URLDetails: details})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	rendered, err := report.Generate(result, format)
	if err != nil {
		f.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), []byte(rendered))
}

func (f *HTTPFilter) batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emails array is required"})
		return
	}
	if len(req.Emails) == 0 || len(req.Emails) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch must contain between 1 and 100 emails"})
		return
	}

	batchID := uuid.NewString()
	items := f.engine.Batch(c.Request.Context(), req.Emails)

	results := make([]batchItemResponse, len(items))
	failed := 0
	for i, item := range items {
		results[i] = batchItemResponse{Index: item.Index, Result: item.Result}
		if item.Err != nil {
			results[i].Error = item.Err.Error()
			failed++
		}
	}

	f.logger.Info("Batch analyzed",
		zap.String("batch_id", batchID),
		zap.Int("emails", len(items)),
		zap.Int("failed", failed))

	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"results":  results,
	})
}

func (f *HTTPFilter) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingSender), errors.Is(err, ErrMissingBody), errors.Is(err, core.ErrNilEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		f.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (f *HTTPFilter) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		f.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
