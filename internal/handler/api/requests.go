package api

// CreateAgentRequest creates a new trading agent. Intervals and durations
// are seconds on the wire.
type CreateAgentRequest struct {
	Name            string             `json:"name" validate:"required,min=1,max=64"`
	Model           string             `json:"model" validate:"required"`
	Mode            string             `json:"mode" default:"autonomous" validate:"oneof=autonomous advisory"`
	Allowance       float64            `json:"allowance" default:"10000" validate:"gt=0"`
	Goal            string             `json:"goal" validate:"max=500"`
	TradeInterval   float64            `json:"trade_interval" default:"60" validate:"gt=0"`
	RiskProfile     string             `json:"risk_profile" default:"neutral" validate:"oneof=aggressive neutral safe"`
	MaxDuration     float64            `json:"max_duration" validate:"gte=0"`
	InitialHoldings map[string]float64 `json:"initial_holdings"`
}

// SetModeRequest switches an agent between autonomous and advisory.
type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=autonomous advisory"`
}

// SetRiskRequest changes an agent's risk profile on the fly.
type SetRiskRequest struct {
	RiskProfile string `json:"risk_profile" validate:"required,oneof=aggressive neutral safe"`
}

// SetDurationRequest sets or clears (0) the session time box, in seconds.
type SetDurationRequest struct {
	MaxDuration float64 `json:"max_duration" validate:"gte=0"`
}

// DepositRequest adds paper cash to an agent's wallet.
type DepositRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// SaveSessionRequest archives an agent's current session.
type SaveSessionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}
