package api

import (
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// RunResponse is the API view of a workflow run.
type RunResponse struct {
	RunID           string `json:"runId"`
	Profile         string `json:"profile"`
	Pair            string `json:"pair"`
	Side            string `json:"side"`
	Outcome         string `json:"outcome"`
	Succeeded       bool   `json:"succeeded"`
	QuoteID         string `json:"quoteId,omitempty"`
	QuoteValidityMS int64  `json:"quoteValidityMs,omitempty"`
	OrderID         string `json:"orderId,omitempty"`
	Attempts        int    `json:"attempts"`
	Visible         bool   `json:"visible"`
	StartedAt       int64  `json:"startedAt"`
	DurationMS      int64  `json:"durationMs"`
	Error           string `json:"error,omitempty"`
}

// ProfileStatus pairs a profile with its most recent run, if any.
type ProfileStatus struct {
	Profile string       `json:"profile"`
	LastRun *RunResponse `json:"lastRun"`
}

func toRunResponse(r *model.RunResult) *RunResponse {
	return &RunResponse{
		RunID:           r.RunID.String(),
		Profile:         r.Profile,
		Pair:            r.Pair,
		Side:            string(r.Side),
		Outcome:         string(r.Outcome),
		Succeeded:       r.Succeeded(),
		QuoteID:         r.QuoteID,
		QuoteValidityMS: r.QuoteValidity.Milliseconds(),
		OrderID:         r.OrderID,
		Attempts:        r.Attempts,
		Visible:         r.Visible,
		StartedAt:       r.StartedAt.UnixMilli(),
		DurationMS:      r.Duration().Milliseconds(),
		Error:           r.Error,
	}
}
