package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/internal/rate"
)

// maxBodyBytes caps how much of a response body is buffered.
const maxBodyBytes = 4 << 20

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Executor sends rate-limited, single-shot HTTP requests. It never retries:
// retry policy belongs to the caller, which knows whether the operation is safe to repeat.
type Executor struct {
	logger   *zap.Logger
	rateMgr  *rate.Manager
	http     *http.Client
	venueTag string
}

// New creates an Executor. rateMgr may be nil to disable client-side limiting.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, venueTag string) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:   logger,
		rateMgr:  rateMgr,
		http:     httpClient,
		venueTag: venueTag,
	}
}

// Do waits for the rate limiter keyed by rateLimitKey, sends req once and reads the body.
// A non-nil error means no complete response was received; any status code, including
// 4xx/5xx, is returned in the Response for the caller to classify.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey string) (*Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	if err != nil {
		e.logger.Warn(e.venueTag+".http_failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn(e.venueTag+".read_failed",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, fmt.Errorf("read response body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Body: body, Latency: elapsed}
	switch {
	case resp.StatusCode >= 500:
		e.logger.Warn(e.venueTag+".server_error",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
	case !out.OK():
		e.logger.Info(e.venueTag+".client_error",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
	default:
		e.logger.Debug(e.venueTag+".http_success",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
	}
	return out, nil
}
