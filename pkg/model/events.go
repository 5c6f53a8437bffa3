package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to every event sink.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Profile       string          `json:"profile"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// RunOutcome summarizes how a workflow run ended.
type RunOutcome string

const (
	OutcomeQuoted    RunOutcome = "quoted"    // quote obtained, execution disabled
	OutcomeExecuted  RunOutcome = "executed"  // order placed and seen in the order list
	OutcomeInvisible RunOutcome = "invisible" // order placed but missing from the order list
	OutcomeFailed    RunOutcome = "failed"
)

// RunResult records one quote→order→verify pass for a profile.
type RunResult struct {
	RunID          uuid.UUID     `json:"run_id"`
	Profile        string        `json:"profile"`
	Pair           string        `json:"pair"`
	Side           Side          `json:"side"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	QuoteID        string        `json:"quote_id,omitempty"`
	QuoteValidity  time.Duration `json:"quote_validity,omitempty"`
	OrderID        string        `json:"order_id,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Attempts       int           `json:"attempts"`
	Visible        bool          `json:"visible"`
	Outcome        RunOutcome    `json:"outcome"`
	Error          string        `json:"error,omitempty"`
}

// Duration is the wall time the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run reached its intended end state.
func (r *RunResult) Succeeded() bool {
	return r.Outcome == OutcomeQuoted || r.Outcome == OutcomeExecuted
}
