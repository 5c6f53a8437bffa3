package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/internal/rfq"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// Policy bounds one logical execution.
type Policy struct {
	MaxRetries int           // total attempts, at least 1
	BaseDelay  time.Duration // backoff before retry k is BaseDelay × k
	// IdempotencyKey, when set, is sent unchanged on every attempt.
	IdempotencyKey string
}

// Validate rejects policies that would make no attempt or sleep negatively.
func (p Policy) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1, got %d", ErrInvalidPolicy, p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay must not be negative, got %s", ErrInvalidPolicy, p.BaseDelay)
	}
	return nil
}

// Execution is the outcome of a successful ExecuteWithRetry.
type Execution struct {
	Order          *model.Order
	Quote          *model.Quote // set by the orchestrator
	Attempts       int
	IdempotencyKey string
}

// Controller executes quotes with bounded linear backoff. It keeps no state
// between calls, so one Controller may serve concurrent workflows.
type Controller struct {
	logger   *zap.Logger
	exec     QuoteExecutor
	classify func(error) bool
	sleep    Sleeper
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClassifier replaces rfq.IsTransient as the retryable-error test.
func WithClassifier(fn func(error) bool) ControllerOption {
	return func(c *Controller) { c.classify = fn }
}

// WithSleeper replaces SleepContext, mainly for tests.
func WithSleeper(s Sleeper) ControllerOption {
	return func(c *Controller) { c.sleep = s }
}

// NewController creates a Controller around exec.
func NewController(logger *zap.Logger, exec QuoteExecutor, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		logger:   logger,
		exec:     exec,
		classify: rfq.IsTransient,
		sleep:    SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecuteWithRetry calls ExecuteQuote until it succeeds, fails fatally, the
// policy's attempts run out, or ctx ends. Failures come back as
// *ExecutionError, *RetryExhaustedError or *CancelledError.
func (c *Controller) ExecuteWithRetry(ctx context.Context, token model.AuthToken, quoteID string, p Policy) (*Execution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var last error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.IncExecutionAttempt("cancelled")
			return nil, &CancelledError{Operation: "execute quote " + quoteID, Attempts: attempt, Err: err, Last: last}
		}

		order, err := c.exec.ExecuteQuote(ctx, token, quoteID, p.IdempotencyKey)
		if err == nil {
			metrics.IncExecutionAttempt("ok")
			c.logger.Info("rfq.execute.success",
				zap.String("quote_id", quoteID),
				zap.String("order_id", order.ID),
				zap.Int("attempts", attempt+1))
			return &Execution{Order: order, Attempts: attempt + 1, IdempotencyKey: p.IdempotencyKey}, nil
		}
		last = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.IncExecutionAttempt("cancelled")
			return nil, &CancelledError{Operation: "execute quote " + quoteID, Attempts: attempt + 1, Err: ctxErr, Last: last}
		}

		if !c.classify(err) {
			metrics.IncExecutionAttempt("fatal")
			c.logger.Error("rfq.execute.fatal",
				zap.String("quote_id", quoteID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return nil, &ExecutionError{QuoteID: quoteID, Attempts: attempt + 1, Err: err}
		}

		if attempt >= p.MaxRetries-1 {
			metrics.IncExecutionAttempt("exhausted")
			c.logger.Error("rfq.execute.exhausted",
				zap.String("quote_id", quoteID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return nil, &RetryExhaustedError{QuoteID: quoteID, Attempts: attempt + 1, Last: err}
		}

		metrics.IncExecutionAttempt("retryable")
		delay := Backoff(p.BaseDelay, attempt)
		metrics.ObserveBackoff(delay)
		c.logger.Warn("rfq.execute.retry",
			zap.String("quote_id", quoteID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", p.MaxRetries),
			zap.Duration("backoff", delay),
			zap.Error(err))

		if err := c.sleep(ctx, delay); err != nil {
			metrics.IncExecutionAttempt("cancelled")
			return nil, &CancelledError{Operation: "execute quote " + quoteID, Attempts: attempt + 1, Err: err, Last: last}
		}
	}
}
