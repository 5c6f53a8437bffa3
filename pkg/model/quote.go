package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a quote request from the taker's point of view.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a side the RFQ API accepts.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// QuoteStatus is the lifecycle state reported by the RFQ API for a quote.
type QuoteStatus string

const (
	QuoteAwaitingResponse QuoteStatus = "AWAITING_RESPONSE"
	QuoteFilled           QuoteStatus = "FILLED"
	QuoteExpired          QuoteStatus = "EXPIRED"
)

// Known reports whether st is one of the statuses the API is documented to return.
func (st QuoteStatus) Known() bool {
	switch st {
	case QuoteAwaitingResponse, QuoteFilled, QuoteExpired:
		return true
	}
	return false
}

// AuthToken is an opaque bearer credential. Its claims are never inspected.
type AuthToken string

// QuoteRequest describes the quote to ask the venue for.
type QuoteRequest struct {
	AccountID       string          `json:"accountId"`
	Pair            string          `json:"pair"`
	Side            Side            `json:"side"`
	DeliverQuantity decimal.Decimal `json:"deliverQuantity"`
	ClientFeeRate   decimal.Decimal `json:"clientFeeRate"`
}

// Quote is a priced, time-bounded offer returned by the RFQ API.
// Values are never mutated once returned; a refresh yields a new Quote.
type Quote struct {
	ID              string          `json:"quote_id"`
	Pair            string          `json:"pair"`
	Side            Side            `json:"side"`
	DeliverQuantity decimal.Decimal `json:"deliver_quantity"`
	ReceiveQuantity decimal.Decimal `json:"receive_quantity"`
	Status          QuoteStatus     `json:"status"`
	RequestedAt     time.Time       `json:"requested_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Validity is the window between creation and expiry.
func (q *Quote) Validity() time.Duration {
	return q.ExpiresAt.Sub(q.RequestedAt)
}
