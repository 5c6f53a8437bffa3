package rfq

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Mapper – wire payloads → canonical model
// ────────────────────────────────────────────────
//
// Every required field is checked here so nothing untyped or half-populated
// reaches the lifecycle core.

func toQuoteRequest(r model.QuoteRequest) quoteRequest {
	return quoteRequest{
		AccountID:       r.AccountID,
		Pair:            strings.ToUpper(r.Pair),
		Side:            strings.ToUpper(string(r.Side)),
		DeliverQuantity: r.DeliverQuantity,
		ClientFeeRate:   r.ClientFeeRate,
	}
}

// isUUID accepts only the canonical 8-4-4-4-12 textual form.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func positive(op, field string, d decimal.NullDecimal) error {
	if !d.Valid {
		return &SchemaError{Operation: op, Field: field, Reason: "missing"}
	}
	if !d.Decimal.IsPositive() {
		return &SchemaError{Operation: op, Field: field, Reason: "must be positive, got " + d.Decimal.String()}
	}
	return nil
}

func fromQuote(op string, r *quoteResponse) (*model.Quote, error) {
	if r.QuoteID == "" {
		return nil, &SchemaError{Operation: op, Field: "quoteId", Reason: "missing"}
	}
	if !isUUID(r.QuoteID) {
		return nil, &SchemaError{Operation: op, Field: "quoteId", Reason: "not a UUID: " + r.QuoteID}
	}
	if r.Pair == "" {
		return nil, &SchemaError{Operation: op, Field: "pair", Reason: "missing"}
	}
	side := model.Side(strings.ToUpper(r.Side))
	if !side.Valid() {
		return nil, &SchemaError{Operation: op, Field: "side", Reason: "unexpected value " + r.Side}
	}
	if err := positive(op, "deliverQuantity", r.DeliverQuantity); err != nil {
		return nil, err
	}
	if err := positive(op, "receiveQuantity", r.ReceiveQuantity); err != nil {
		return nil, err
	}
	status := model.QuoteStatus(strings.ToUpper(r.QuoteStatus))
	if !status.Known() {
		return nil, &SchemaError{Operation: op, Field: "quoteStatus", Reason: "unexpected value " + r.QuoteStatus}
	}
	if !r.RequestedAt.Set {
		return nil, &SchemaError{Operation: op, Field: "requestedAt", Reason: "missing"}
	}
	if !r.ExpiresAt.Set {
		return nil, &SchemaError{Operation: op, Field: "expiresAt", Reason: "missing"}
	}
	if !r.ExpiresAt.After(r.RequestedAt.Time) {
		return nil, &SchemaError{Operation: op, Field: "expiresAt", Reason: "not after requestedAt"}
	}

	return &model.Quote{
		ID:              r.QuoteID,
		Pair:            r.Pair,
		Side:            side,
		DeliverQuantity: r.DeliverQuantity.Decimal,
		ReceiveQuantity: r.ReceiveQuantity.Decimal,
		Status:          status,
		RequestedAt:     r.RequestedAt.Time,
		ExpiresAt:       r.ExpiresAt.Time,
	}, nil
}

func fromOrder(op string, r *orderResponse) (*model.Order, error) {
	if r.OrderID == "" {
		return nil, &SchemaError{Operation: op, Field: "orderId", Reason: "missing"}
	}
	if !isUUID(r.OrderID) {
		return nil, &SchemaError{Operation: op, Field: "orderId", Reason: "not a UUID: " + r.OrderID}
	}
	status := r.OrderStatus
	if status == "" {
		status = r.Status
	}
	return &model.Order{
		ID:              r.OrderID,
		QuoteID:         r.QuoteID,
		Status:          strings.ToUpper(status),
		Side:            model.Side(strings.ToUpper(r.Side)),
		Pair:            r.Pair,
		Price:           r.Price.Decimal,
		DeliverQuantity: r.DeliverQuantity.Decimal,
		ReceiveQuantity: r.ReceiveQuantity.Decimal,
		FilledQuantity:  r.FilledQuantity.Decimal,
		CreatedAt:       r.CreatedAt.Time,
		UpdatedAt:       r.UpdatedAt.Time,
	}, nil
}
