package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testRequest() model.QuoteRequest {
	return model.QuoteRequest{
		Pair:            "BTC-USD",
		Side:            model.SideBuy,
		DeliverQuantity: decimal.RequireFromString("103.06"),
		ClientFeeRate:   decimal.NewFromInt(30),
	}
}

func quoteAt(requested time.Time, validity time.Duration) *model.Quote {
	return &model.Quote{
		ID:              uuid.NewString(),
		Pair:            "BTC-USD",
		Side:            model.SideBuy,
		DeliverQuantity: decimal.RequireFromString("103.06"),
		ReceiveQuantity: decimal.RequireFromString("0.00112"),
		Status:          model.QuoteAwaitingResponse,
		RequestedAt:     requested,
		ExpiresAt:       requested.Add(validity),
	}
}

// fakeService is a scripted Service that counts calls.
type fakeService struct {
	mu sync.Mutex

	validity  time.Duration
	createErr error
	creates   int

	execErrs  []error // consumed in order; nil entries or an empty queue mean success
	execKeys  []string
	execCalls int

	orders    []model.Order
	listErr   error
	listCalls int
	// visibleAfter makes the executed order appear only from this list call onward (1-based).
	visibleAfter int
}

func (f *fakeService) CreateQuote(_ context.Context, _ model.AuthToken, _ model.QuoteRequest) (*model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	validity := f.validity
	if validity == 0 {
		validity = 10 * time.Second
	}
	return quoteAt(t0, validity), nil
}

func (f *fakeService) ExecuteQuote(_ context.Context, _ model.AuthToken, quoteID, key string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	f.execKeys = append(f.execKeys, key)
	if len(f.execErrs) > 0 {
		err := f.execErrs[0]
		f.execErrs = f.execErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &model.Order{ID: fmt.Sprintf("order-%d", f.execCalls), QuoteID: quoteID, Status: "PLACED"}, nil
}

func (f *fakeService) ListOrders(_ context.Context, _ model.AuthToken) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.visibleAfter > 0 && f.listCalls < f.visibleAfter {
		return nil, nil
	}
	return f.orders, nil
}

// recordingSleeper records requested delays without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}
