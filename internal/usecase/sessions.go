package usecase

import (
	"context"
	"time"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	applogger "PhantomEx/pkg/logger"
)

// SessionArchiver freezes a finished agent into the session archive: final
// valuation, trade tally, full trade log and equity curve, plus a best-effort
// LLM retrospective.
type SessionArchiver struct {
	store  drepo.Store
	oracle drepo.Oracle
	log    *applogger.Logger
}

func NewSessionArchiver(store drepo.Store, oracle drepo.Oracle, log *applogger.Logger) *SessionArchiver {
	return &SessionArchiver{store: store, oracle: oracle, log: log}
}

// Archive records the agent's session as it stands and returns the stored
// session id. The summary is generated after the row is written; a summary
// failure leaves the archived session intact without one.
func (s *SessionArchiver) Archive(ctx context.Context, agent *Agent, prices models.PriceSnapshot, notes string) (int64, error) {
	rec := agent.Record()
	view := agent.Ledger().View(prices)

	trades, err := s.store.Trades(ctx, rec.ID, 0)
	if err != nil {
		return 0, err
	}
	equity, err := s.store.EquityCurve(ctx, rec.ID, 0)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	sess := &models.SavedSession{
		AgentID:     rec.ID,
		AgentName:   rec.Name,
		Model:       rec.Model,
		RiskProfile: rec.RiskProfile,
		Goal:        rec.Goal,
		Allowance:   rec.Allowance,
		FinalValue:  view.TotalValue,
		PnL:         view.TotalValue - rec.Allowance,
		StartedAt:   rec.StartedAt,
		EndedAt:     now,
		Notes:       notes,
		Trades:      trades,
		Equity:      equity,
		SavedAt:     now,
	}
	if rec.Allowance > 0 {
		sess.PnLPct = sess.PnL / rec.Allowance * 100
	}
	if rec.StartedAt != nil {
		sess.Duration = now.Sub(*rec.StartedAt)
	}
	for _, t := range trades {
		switch t.Side {
		case models.SideBuy:
			sess.BuyCount++
		case models.SideSell:
			sess.SellCount++
		case models.SideHold:
			sess.HoldCount++
		}
	}
	sess.TradeCount = sess.BuyCount + sess.SellCount

	id, err := s.store.SaveSession(ctx, sess)
	if err != nil {
		return 0, err
	}
	sess.ID = id

	s.summarize(ctx, id, sess)
	return id, nil
}

// Recover archives a session for any persisted agent, active or not, from
// its stored history alone. It exists so the work of agents removed before
// saving is not lost.
func (s *SessionArchiver) Recover(ctx context.Context, agentID string, prices models.PriceSnapshot, notes string) (int64, error) {
	rec, err := s.store.Agent(ctx, agentID)
	if err != nil {
		return 0, err
	}

	sess, err := s.rebuild(ctx, rec, prices, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	sess.Notes = notes
	sess.SavedAt = time.Now().UTC().Truncate(time.Second)

	id, err := s.store.SaveSession(ctx, sess)
	if err != nil {
		return 0, err
	}
	sess.ID = id

	s.summarize(ctx, id, sess)
	return id, nil
}

// Recapture rebuilds an existing archived session from the agent's complete
// stored history, repairing sessions that were saved before the agent
// finished trading.
func (s *SessionArchiver) Recapture(ctx context.Context, sessionID int64, prices models.PriceSnapshot) (*models.SavedSession, error) {
	old, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Agent(ctx, old.AgentID)
	if err != nil {
		return nil, err
	}

	// An agent still running keeps the session's recorded end time.
	sess, err := s.rebuild(ctx, rec, prices, old.EndedAt)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID
	sess.Notes = old.Notes
	sess.SavedAt = old.SavedAt

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.summarize(ctx, sessionID, sess)
	return sess, nil
}

// rebuild derives a session entirely from persisted history. Final value
// prefers the last equity sample over a fresh valuation; start falls back to
// the first trade; a deactivated agent ends at its last trade instead of
// fallbackEnd.
func (s *SessionArchiver) rebuild(ctx context.Context, rec *models.AgentRecord, prices models.PriceSnapshot, fallbackEnd time.Time) (*models.SavedSession, error) {
	trades, err := s.store.Trades(ctx, rec.ID, 0)
	if err != nil {
		return nil, err
	}
	equity, err := s.store.EquityCurve(ctx, rec.ID, 0)
	if err != nil {
		return nil, err
	}

	var finalValue float64
	if len(equity) > 0 {
		finalValue = equity[len(equity)-1].TotalValue
	} else {
		cash, holdings := Reconstruct(rec.Allowance, trades)
		finalValue = cash
		for symbol, h := range holdings {
			finalValue += h.Quantity * prices.PriceOf(symbol)
		}
	}

	startedAt := rec.StartedAt
	if startedAt == nil && len(trades) > 0 {
		t := trades[0].Timestamp
		startedAt = &t
	}
	endedAt := fallbackEnd
	if !rec.Active && len(trades) > 0 {
		endedAt = trades[len(trades)-1].Timestamp
	}

	sess := &models.SavedSession{
		AgentID:     rec.ID,
		AgentName:   rec.Name,
		Model:       rec.Model,
		RiskProfile: rec.RiskProfile,
		Goal:        rec.Goal,
		Allowance:   rec.Allowance,
		FinalValue:  finalValue,
		PnL:         finalValue - rec.Allowance,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		Trades:      trades,
		Equity:      equity,
	}
	if rec.Allowance > 0 {
		sess.PnLPct = sess.PnL / rec.Allowance * 100
	}
	if startedAt != nil {
		sess.Duration = endedAt.Sub(*startedAt)
	}
	for _, t := range trades {
		switch t.Side {
		case models.SideBuy:
			sess.BuyCount++
		case models.SideSell:
			sess.SellCount++
		case models.SideHold:
			sess.HoldCount++
		}
	}
	sess.TradeCount = sess.BuyCount + sess.SellCount
	return sess, nil
}

// summarize asks the oracle for a retrospective and persists it. Best
// effort: failures leave the session without a summary.
func (s *SessionArchiver) summarize(ctx context.Context, id int64, sess *models.SavedSession) {
	summary, err := s.oracle.Summarize(ctx, sess)
	if err != nil {
		s.log.Warn("session summary skipped", applogger.String("agent", sess.AgentID), applogger.Error(err))
		return
	}
	if err := s.store.SetSessionSummary(ctx, id, summary); err != nil {
		s.log.Warn("persist session summary failed", applogger.Error(err))
	}
}
