package domain

import (
	"time"
)

// Status final status of a cycle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Cycle outcome reasons.
const (
	ReasonHold                      = "hold"
	ReasonOrderPlaced               = "order_placed"
	ReasonSimulated                 = "simulated"
	ReasonParseError                = "parse_error"
	ReasonInvalidAction             = "invalid_action"
	ReasonNegativeAmount            = "negative_amount"
	ReasonZeroAmount                = "zero_amount"
	ReasonUnsupportedCoin           = "unsupported_coin"
	ReasonDegradedValuation         = "degraded_valuation"
	ReasonNetworkExhausted          = "network_exhausted"
	ReasonRateLimited               = "rate_limited"
	ReasonAuth                      = "auth_error"
	ReasonOrderRejected             = "order_rejected"
	ReasonRecommendationUnavailable = "recommendation_unavailable"
	ReasonRequestRejected           = "request_rejected"
	ReasonConfiguration             = "configuration_error"
	ReasonShutdown                  = "shutdown"
)

// CycleResult outcome of one loop iteration.
type CycleResult struct {
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	FillState string `json:"fill_state,omitempty"`
	Simulated bool   `json:"simulated,omitempty"`
}

// String renders the result as status: reason.
func (r CycleResult) String() string {
	if r.Reason == "" {
		return string(r.Status)
	}
	return string(r.Status) + ": " + r.Reason
}

// CycleRecord durable log entry written once per cycle.
type CycleRecord struct {
	ID                string          `json:"id"`
	Seq               uint64          `json:"seq"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	Balances          []Balance       `json:"balances,omitempty"`
	Valuation         *Valuation      `json:"valuation,omitempty"`
	RawRecommendation string          `json:"raw_recommendation,omitempty"`
	Recommendation    *Recommendation `json:"recommendation,omitempty"`
	Order             *Order          `json:"order,omitempty"`
	Result            CycleResult     `json:"result"`
	Warnings          []string        `json:"warnings,omitempty"`
}

// Duration wall time spent on the cycle.
func (r CycleRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
