package models

import "time"

// DecisionAction is the closed set of actions the oracle may return. Replies
// outside this set are rejected at the adapter boundary instead of leaking a
// loosely-typed payload into the agent.
type DecisionAction string

const (
	ActionBuy  DecisionAction = "buy"
	ActionSell DecisionAction = "sell"
	ActionHold DecisionAction = "hold"
)

// Valid reports whether a is one of buy/sell/hold.
func (a DecisionAction) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Decision is one parsed oracle reply. Transient: it is either applied to the
// ledger immediately or held as the agent's single pending decision.
type Decision struct {
	AgentID   string         `json:"agent_id"`
	Action    DecisionAction `json:"action"`
	Symbol    string         `json:"symbol"`
	Quantity  float64        `json:"quantity"`
	Reasoning string         `json:"reasoning"`
	Timestamp time.Time      `json:"timestamp"`
}
