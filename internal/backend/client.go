// Package backend talks to the external analysis service that owns the meter
// readings, the baseline curves and the narrative analysis.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"energy-insights/internal/models"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

// Endpoint paths on the analysis backend
const (
	PathAnalyzeOutliers = "/analyze-outliers"
	PathAnalyze         = "/analyze"
	PathChat            = "/chat"
)

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend %s returned %d", e.Path, e.StatusCode)
}

// IsTransient reports whether retrying the request may succeed
func (e *StatusError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config configures a Client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls the analysis backend through a circuit breaker with bounded
// retries and exponential backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewClient creates a backend client
func NewClient(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		metrics:    metricsCollector,
	}
	c.breaker = c.createCircuitBreaker()

	return c
}

func (c *Client) createCircuitBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis-backend",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// Client errors are answers, not backend failures.
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.IsTransient()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.BackendBreakerState.Set(float64(to))
			c.logger.Warn(context.Background(), "[BACKEND_BREAKER] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

// SearchOutliers asks the backend for device-days whose deviation from the
// base year exceeds the threshold.
func (c *Client) SearchOutliers(ctx context.Context, req models.OutlierRequest) (*models.OutlierResponse, error) {
	var resp models.OutlierResponse
	if err := c.post(ctx, PathAnalyzeOutliers, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeDay fetches the finished series and narrative analysis of one device-day
func (c *Client) AnalyzeDay(ctx context.Context, req models.AnalyzeRequest) (*models.SeriesAnalysis, error) {
	var resp models.SeriesAnalysis
	if err := c.post(ctx, PathAnalyze, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat forwards a free-form question to the backend assistant
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := c.post(ctx, PathChat, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	timer := c.metrics.NewTimer(c.metrics.BackendRequestDuration.WithLabelValues(path))
	defer timer.ObserveDuration()

	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	log := c.logger.WithFields(logging.Fields{"path": path})

	respBody, err := c.callWithRetry(ctx, log, path, reqBody)
	if err != nil {
		c.metrics.RecordBackendError(path, errorType(err))
		log.Error(ctx, "[BACKEND_ERROR] Backend request failed", logging.Fields{
			"error_type": errorType(err),
		}, err)
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		c.metrics.RecordBackendError(path, "decode_error")
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// callWithRetry runs the request through the breaker, backing off
// exponentially between attempts.
func (c *Client) callWithRetry(ctx context.Context, log *logging.ContextLogger, path string, reqBody []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}

			log.Debug(ctx, "[BACKEND_RETRY] Retrying backend request", logging.Fields{
				"attempt":    attempt,
				"backoff_ms": backoff.Milliseconds(),
			})

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doHTTPCall(ctx, path, reqBody)
		})
		if err == nil {
			return result.([]byte), nil
		}

		lastErr = err
		if !shouldRetry(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doHTTPCall(ctx context.Context, path string, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	return respBody, nil
}

// errorDetail extracts the "detail" message of an error body, falling back
// to the raw body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return string(bytes.TrimSpace(body))
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.IsTransient()
	}
	return true
}

func errorType(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.StatusCode)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport_error"
	}
}
