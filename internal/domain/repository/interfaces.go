package repository

import (
	"context"
	"time"

	"PhantomEx/internal/domain/models"
)

// PriceSource pulls one consistent market snapshot from an external provider.
type PriceSource interface {
	Fetch(ctx context.Context) (models.PriceSnapshot, error)
	// History returns daily-ish OHLC candles for charting, newest last.
	History(ctx context.Context, symbol string, days int) ([]models.Candle, error)
	Symbols() []string
}

// Oracle asks a language model for a trading decision given the current
// market and the agent's portfolio. Implementations own the prompt, the
// per-agent rolling history, and the call timeout.
type Oracle interface {
	Decide(ctx context.Context, agent *models.AgentRecord, prices models.PriceSnapshot, portfolio *models.PortfolioView) (*models.Decision, error)
	// Summarize produces a short written review of a finished session.
	// Best effort: callers treat an error as "no summary".
	Summarize(ctx context.Context, sess *models.SavedSession) (string, error)
	// Forget drops the rolling history kept for an agent.
	Forget(agentID string)
}

// Store is the persistence contract for agents, the append-only trade log,
// the holdings snapshot, equity curves, and archived sessions.
type Store interface {
	Init(ctx context.Context) error

	// Agents.
	CreateAgent(ctx context.Context, rec *models.AgentRecord) error
	// Agent loads one agent row regardless of its active flag.
	// sql.ErrNoRows when absent.
	Agent(ctx context.Context, agentID string) (*models.AgentRecord, error)
	ActiveAgents(ctx context.Context) ([]*models.AgentRecord, error)
	DeactivateAgent(ctx context.Context, agentID string) error
	SetAgentMode(ctx context.Context, agentID string, mode models.AgentMode) error
	SetAgentRisk(ctx context.Context, agentID string, profile models.RiskProfile) error
	SetAgentMaxDuration(ctx context.Context, agentID string, d time.Duration) error
	SetAgentStartedAt(ctx context.Context, agentID string, t time.Time) error
	AddAllowance(ctx context.Context, agentID string, amount float64) error

	// Ledger. SaveTrade appends the trade row and, for buy/sell rows,
	// upserts (holding != nil) or deletes (holding == nil) the holdings
	// snapshot for trade.Symbol in the same transaction. Hold rows only
	// append.
	SaveTrade(ctx context.Context, trade *models.Trade, holding *models.Holding) error
	SeedHolding(ctx context.Context, agentID string, h models.Holding) error
	Holdings(ctx context.Context, agentID string) ([]models.Holding, error)
	Trades(ctx context.Context, agentID string, limit int) ([]models.Trade, error)

	// Market and equity time series.
	SavePriceSnapshot(ctx context.Context, snap models.PriceSnapshot) error
	SaveEquityPoint(ctx context.Context, agentID string, p models.EquityPoint) error
	EquityCurve(ctx context.Context, agentID string, limit int) ([]models.EquityPoint, error)

	// Session archive.
	SaveSession(ctx context.Context, sess *models.SavedSession) (int64, error)
	// UpdateSession rewrites a saved session's computed fields and payloads
	// in place, keyed by sess.ID. sql.ErrNoRows when absent.
	UpdateSession(ctx context.Context, sess *models.SavedSession) error
	SetSessionSummary(ctx context.Context, sessionID int64, summary string) error
	Sessions(ctx context.Context) ([]models.SavedSession, error)
	Session(ctx context.Context, sessionID int64) (*models.SavedSession, error)
	DeleteSession(ctx context.Context, sessionID int64) error

	Close() error
}

// Notifier carries state changes outward to the transport layer. Calls must
// not block agent cycles.
type Notifier interface {
	AgentState(state *models.AgentState)
	TradeExecuted(agentID string, trade *models.Trade)
	PendingDecision(agentID string, decision *models.Decision)
	Prices(snap models.PriceSnapshot)
	AgentRemoved(agentID string)
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordTick(source string)
	RecordCycle(agentID string)
	RecordTrade(side string)
	RecordOracleLatency(seconds float64)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordEquity(agentID string, value float64)
}
