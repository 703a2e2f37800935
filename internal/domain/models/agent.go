package models

import "time"

// AgentMode selects how decisions are applied.
type AgentMode string

const (
	// ModeAutonomous applies each decision to the ledger immediately.
	ModeAutonomous AgentMode = "autonomous"
	// ModeAdvisory queues the decision for human approval instead.
	ModeAdvisory AgentMode = "advisory"
)

// RiskProfile selects the canned risk instructions in the oracle prompt.
type RiskProfile string

const (
	RiskAggressive RiskProfile = "aggressive"
	RiskNeutral    RiskProfile = "neutral"
	RiskSafe       RiskProfile = "safe"
)

// AgentRecord is the persisted configuration of one agent.
type AgentRecord struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Model         string        `json:"model"`
	Mode          AgentMode     `json:"mode"`
	Allowance     float64       `json:"allowance"`
	Goal          string        `json:"goal"`
	TradeInterval time.Duration `json:"trade_interval"`
	RiskProfile   RiskProfile   `json:"risk_profile"`
	// MaxDuration bounds the session; zero means run forever.
	MaxDuration time.Duration `json:"max_duration"`
	// StartedAt is stamped on the agent's first real decision cycle, not at
	// creation, so the session timer measures trading time.
	StartedAt *time.Time `json:"started_at,omitempty"`
	Active    bool       `json:"active"`
}

// AgentState is the full outward snapshot broadcast after every cycle, trade,
// or configuration change.
type AgentState struct {
	AgentRecord
	Running         bool           `json:"running"`
	PendingDecision *Decision      `json:"pending_decision,omitempty"`
	LastThought     *Decision      `json:"last_thought,omitempty"`
	Portfolio       *PortfolioView `json:"portfolio,omitempty"`
}
