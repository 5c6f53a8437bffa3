package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// Orchestrator runs one quote→order workflow. It owns its token, its quote
// slot and its controller; concurrent workflows each need their own instance.
type Orchestrator struct {
	logger     *zap.Logger
	svc        Service
	token      model.AuthToken
	tracker    *Tracker
	controller *Controller

	now            func() time.Time
	sleep          Sleeper
	idempotencyKey func() string // nil disables idempotency keys
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides time.Now for quote expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIdempotencyKeys attaches a fresh UUID key to each RunQuoteToOrder. The key
// is reused across that run's retries.
func WithIdempotencyKeys() Option {
	return func(o *Orchestrator) { o.idempotencyKey = uuid.NewString }
}

// WithControllerOptions passes options through to the Controller. A WithSleeper
// here also governs visibility polling.
func WithControllerOptions(opts ...ControllerOption) Option {
	return func(o *Orchestrator) {
		o.controller = NewController(o.logger, o.svc, opts...)
		o.sleep = o.controller.sleep
	}
}

// NewOrchestrator wires a Tracker and Controller around svc for one quote request.
func NewOrchestrator(logger *zap.Logger, svc Service, token model.AuthToken, req model.QuoteRequest, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:     logger,
		svc:        svc,
		token:      token,
		tracker:    NewTracker(logger, svc, token, req),
		controller: NewController(logger, svc),
		now:        time.Now,
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetValidQuote returns a quote that is executable at the orchestrator's current time.
func (o *Orchestrator) GetValidQuote(ctx context.Context) (*model.Quote, error) {
	return o.tracker.GetValidQuote(ctx, o.now())
}

// CurrentQuote returns the cached quote, or nil.
func (o *Orchestrator) CurrentQuote() *model.Quote {
	return o.tracker.Current()
}

// RunQuoteToOrder obtains a valid quote and executes it under the retry policy.
// After a successful execution the cached quote is dropped, as it has been consumed.
func (o *Orchestrator) RunQuoteToOrder(ctx context.Context, maxRetries int, baseDelay time.Duration) (*Execution, error) {
	q, err := o.GetValidQuote(ctx)
	if err != nil {
		return nil, err
	}

	p := Policy{MaxRetries: maxRetries, BaseDelay: baseDelay}
	if o.idempotencyKey != nil {
		p.IdempotencyKey = o.idempotencyKey()
	}

	exec, err := o.controller.ExecuteWithRetry(ctx, o.token, q.ID, p)
	if err != nil {
		return nil, err
	}
	o.tracker.Invalidate()
	exec.Quote = q
	return exec, nil
}

// VerifyOrderVisible lists orders once and reports whether order appears.
func (o *Orchestrator) VerifyOrderVisible(ctx context.Context, order *model.Order) (bool, error) {
	orders, err := o.svc.ListOrders(ctx, o.token)
	if err != nil {
		return false, err
	}
	for i := range orders {
		if orders[i].ID == order.ID {
			return true, nil
		}
	}
	o.logger.Warn("rfq.order.not_visible",
		zap.String("order_id", order.ID),
		zap.Int("listed", len(orders)))
	return false, nil
}

// AwaitOrderVisible polls VerifyOrderVisible up to polls times, sleeping
// Backoff(baseDelay, i) between polls. It stops at the first listing error.
func (o *Orchestrator) AwaitOrderVisible(ctx context.Context, order *model.Order, polls int, baseDelay time.Duration) (bool, error) {
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		if err := ctx.Err(); err != nil {
			return false, &CancelledError{Operation: "await order " + order.ID, Attempts: i, Err: err}
		}
		visible, err := o.VerifyOrderVisible(ctx, order)
		if err != nil || visible {
			return visible, err
		}
		if i == polls-1 {
			break
		}
		if err := o.sleep(ctx, Backoff(baseDelay, i)); err != nil {
			return false, &CancelledError{Operation: "await order " + order.ID, Attempts: i + 1, Err: err}
		}
	}
	return false, nil
}
