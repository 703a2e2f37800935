package models

import "time"

// TradeSide is the direction of a ledger entry.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
	// SideHold marks a think cycle that produced no position change. Hold
	// rows carry zero quantity/price/total and exist only so the trade log
	// shows every decision, not just executed ones.
	SideHold TradeSide = "hold"
)

// TradeMode distinguishes paper trades from a future real-execution mode.
type TradeMode string

const ModePaper TradeMode = "paper"

// Trade is one append-only row of an agent's trade log.
type Trade struct {
	AgentID   string    `json:"agent_id"`
	Symbol    string    `json:"symbol"`
	Side      TradeSide `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Total     float64   `json:"total"`
	Reasoning string    `json:"reasoning"`
	Mode      TradeMode `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// Holding is an open position. Quantity is always > 0; a position that
// reaches zero is removed from the portfolio, never kept as a zero row.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// PnL is the unrealized profit/loss of one holding against its cost basis.
type PnL struct {
	Unrealized float64 `json:"unrealized"`
	Pct        float64 `json:"pct"`
}

// PortfolioView is the outward snapshot of a ledger at one price snapshot.
type PortfolioView struct {
	AgentID       string             `json:"agent_id"`
	Cash          float64            `json:"cash"`
	Holdings      map[string]Holding `json:"holdings"`
	TotalValue    float64            `json:"total_value"`
	UnrealizedPnL map[string]PnL     `json:"unrealized_pnl"`
}

// EquityPoint is one sample of an agent's equity curve.
type EquityPoint struct {
	TotalValue float64   `json:"total_value"`
	Cash       float64   `json:"cash"`
	Timestamp  time.Time `json:"timestamp"`
}
