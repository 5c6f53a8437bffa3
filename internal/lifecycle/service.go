package lifecycle

import (
	"context"
	"time"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// QuoteCreator requests new quotes. Satisfied by *rfq.Client.
type QuoteCreator interface {
	CreateQuote(ctx context.Context, token model.AuthToken, req model.QuoteRequest) (*model.Quote, error)
}

// QuoteExecutor converts a quote into an order. Satisfied by *rfq.Client.
type QuoteExecutor interface {
	ExecuteQuote(ctx context.Context, token model.AuthToken, quoteID, idempotencyKey string) (*model.Order, error)
}

// OrderLister lists the account's orders. Satisfied by *rfq.Client.
type OrderLister interface {
	ListOrders(ctx context.Context, token model.AuthToken) ([]model.Order, error)
}

// Service is the RFQ capability the orchestrator composes.
type Service interface {
	QuoteCreator
	QuoteExecutor
	OrderLister
}

// Sleeper suspends the calling goroutine for d, returning early with ctx.Err()
// if ctx ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff is the delay slept before retry number attempt+1: base × (attempt+1).
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt+1)
}
