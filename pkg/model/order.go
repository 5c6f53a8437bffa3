package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the binding result of executing a quote. Optional fields are zero when
// the venue omits them.
type Order struct {
	ID              string          `json:"order_id"`
	QuoteID         string          `json:"quote_id,omitempty"`
	Status          string          `json:"status,omitempty"`
	Side            Side            `json:"side,omitempty"`
	Pair            string          `json:"pair,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DeliverQuantity decimal.Decimal `json:"deliver_quantity"`
	ReceiveQuantity decimal.Decimal `json:"receive_quantity"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}
