package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// Tracker holds at most one current quote for a single workflow and refreshes it
// lazily. It is not safe for concurrent use; each workflow owns its own Tracker.
type Tracker struct {
	logger  *zap.Logger
	creator QuoteCreator
	token   model.AuthToken
	req     model.QuoteRequest
	current *model.Quote
}

// NewTracker returns an empty tracker that requests quotes for req using token.
func NewTracker(logger *zap.Logger, creator QuoteCreator, token model.AuthToken, req model.QuoteRequest) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger, creator: creator, token: token, req: req}
}

// IsExpired reports whether now is strictly after the quote's expiry.
// A quote checked at exactly ExpiresAt is still valid.
func IsExpired(q *model.Quote, now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// GetValidQuote returns the cached quote if it is unexpired at now and still
// awaiting a response; otherwise it creates a new one and caches it.
// Errors from the creator are returned unchanged and leave the cache untouched.
func (t *Tracker) GetValidQuote(ctx context.Context, now time.Time) (*model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Operation: "get valid quote", Err: err}
	}

	reason := "miss"
	if t.current != nil {
		switch {
		case IsExpired(t.current, now):
			reason = "expired"
		case t.current.Status != model.QuoteAwaitingResponse:
			reason = "consumed"
		default:
			metrics.IncQuoteCache("hit")
			return t.current, nil
		}
	}
	metrics.IncQuoteCache(reason)

	q, err := t.creator.CreateQuote(ctx, t.token, t.req)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("quote_id", q.ID),
		zap.String("reason", reason),
		zap.Time("expires_at", q.ExpiresAt),
		zap.Duration("validity", q.Validity()),
	}
	if t.current != nil {
		fields = append(fields, zap.String("replaced_quote_id", t.current.ID))
	}
	t.logger.Info("rfq.quote.refreshed", fields...)

	t.current = q
	return q, nil
}

// Current returns the cached quote, or nil.
func (t *Tracker) Current() *model.Quote {
	return t.current
}

// Invalidate drops the cached quote so the next GetValidQuote creates a new one.
func (t *Tracker) Invalidate() {
	t.current = nil
}
