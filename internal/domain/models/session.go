package models

import "time"

// SavedSession is an archived trading session: final results plus the full
// trade log and equity curve serialized for later review.
type SavedSession struct {
	ID          int64         `json:"id"`
	AgentID     string        `json:"agent_id"`
	AgentName   string        `json:"agent_name"`
	Model       string        `json:"model"`
	RiskProfile RiskProfile   `json:"risk_profile"`
	Goal        string        `json:"goal"`
	Allowance   float64       `json:"allowance"`
	FinalValue  float64       `json:"final_value"`
	PnL         float64       `json:"pnl"`
	PnLPct      float64       `json:"pnl_pct"`
	TradeCount  int           `json:"trade_count"`
	BuyCount    int           `json:"buy_count"`
	SellCount   int           `json:"sell_count"`
	HoldCount   int           `json:"hold_count"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"duration_secs"`
	Notes       string        `json:"notes"`
	Summary     string        `json:"summary"`
	// Trades and Equity are loaded only on single-session reads; list
	// queries leave them nil.
	Trades  []Trade       `json:"trades,omitempty"`
	Equity  []EquityPoint `json:"equity,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
}
