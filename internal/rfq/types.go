package rfq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ClientConfig holds the endpoints and client credentials for one RFQ account.
type ClientConfig struct {
	BaseURL      string // e.g. "https://camsapi-dev.aquanow.io"
	TokenURL     string // OAuth2 client-credentials endpoint
	ClientID     string
	ClientSecret string
}

//
// ────────────────────────────────────────────────
//   Token exchange
// ────────────────────────────────────────────────
//

// tokenResponse is the client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

//
// ────────────────────────────────────────────────
//   Quotes
// ────────────────────────────────────────────────
//

// quoteRequest is the payload for POST /api/v1/quotes. Decimals marshal as strings.
type quoteRequest struct {
	AccountID       string          `json:"accountId,omitempty"`
	Pair            string          `json:"pair"`
	Side            string          `json:"side"`
	DeliverQuantity decimal.Decimal `json:"deliverQuantity"`
	ClientFeeRate   decimal.Decimal `json:"clientFeeRate"`
}

// quoteResponse is the quote object returned by POST /api/v1/quotes.
type quoteResponse struct {
	QuoteID         string              `json:"quoteId"`
	Pair            string              `json:"pair"`
	Side            string              `json:"side"`
	DeliverQuantity decimal.NullDecimal `json:"deliverQuantity"`
	ReceiveQuantity decimal.NullDecimal `json:"receiveQuantity"`
	RequestedAt     timestamp           `json:"requestedAt"`
	ExpiresAt       timestamp           `json:"expiresAt"`
	QuoteStatus     string              `json:"quoteStatus"`
}

//
// ────────────────────────────────────────────────
//   Orders
// ────────────────────────────────────────────────
//

// executeRequest is the payload for POST /api/v1/orders.
type executeRequest struct {
	QuoteID string `json:"quoteId"`
}

// orderResponse is an order object, returned by execution and inside the order list.
type orderResponse struct {
	OrderID         string              `json:"orderId"`
	QuoteID         string              `json:"quoteId,omitempty"`
	OrderStatus     string              `json:"orderStatus,omitempty"`
	Status          string              `json:"status,omitempty"`
	Side            string              `json:"side,omitempty"`
	Pair            string              `json:"pair,omitempty"`
	Price           decimal.NullDecimal `json:"price"`
	DeliverQuantity decimal.NullDecimal `json:"deliverQuantity"`
	ReceiveQuantity decimal.NullDecimal `json:"receiveQuantity"`
	FilledQuantity  decimal.NullDecimal `json:"filledQuantity"`
	CreatedAt       timestamp           `json:"createdAt"`
	UpdatedAt       timestamp           `json:"updatedAt"`
}

// listOrdersResponse is the body of GET /api/v1/orders. A missing "orders" key
// is a schema violation, an empty array is not.
type listOrdersResponse struct {
	Orders *[]orderResponse `json:"orders"`
}

//
// ────────────────────────────────────────────────
//   Timestamps
// ────────────────────────────────────────────────
//

// timestamp accepts RFC 3339 strings or unix epoch numbers (seconds or milliseconds).
type timestamp struct {
	time.Time
	Set bool
}

// zonelessLayouts are ISO 8601 forms without an offset; they are read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

func (t *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time, t.Set = parsed.UTC(), true
			return nil
		}
		for _, layout := range zonelessLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				t.Time, t.Set = parsed, true
				return nil
			}
		}
		return t.fromEpoch(s)
	}
	return t.fromEpoch(string(b))
}

func (t *timestamp) fromEpoch(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognised timestamp %q", s)
	}
	if n > epochMillisThreshold {
		t.Time = time.UnixMilli(n).UTC()
	} else {
		t.Time = time.Unix(n, 0).UTC()
	}
	t.Set = true
	return nil
}
