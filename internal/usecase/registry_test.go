package usecase

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PhantomEx/internal/domain/models"
)

func testRegistry(t *testing.T) (*Registry, *fakeOracle, *fakeNotifier) {
	t.Helper()
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	n := &fakeNotifier{}
	r := NewRegistry(testStore(t), orc, n, noopMetrics{}, testLogger(t))
	return r, orc, n
}

func TestRegistryCreateDefaultsAndSeeds(t *testing.T) {
	ctx := context.Background()
	r, _, n := testRegistry(t)

	prices := models.PriceSnapshot{"BTC": {Price: 50000}}
	agent, err := r.Create(ctx, CreateAgentParams{
		Name:      "scalper",
		Model:     "llama3.1",
		Allowance: 10000,
		InitialHoldings: map[string]float64{
			"btc":  0.2, // lowercase must be accepted
			"SHIB": 100, // unpriced, skipped
			"ETH":  -1,  // non-positive, skipped
		},
	}, prices)
	require.NoError(t, err)

	rec := agent.Record()
	require.NotEmpty(t, rec.ID)
	require.Equal(t, models.ModeAutonomous, rec.Mode)
	require.Equal(t, models.RiskNeutral, rec.RiskProfile)
	require.Equal(t, time.Minute, rec.TradeInterval)

	holdings := agent.Ledger().Holdings()
	require.Len(t, holdings, 1)
	require.InDelta(t, 0.2, holdings["BTC"].Quantity, 1e-9)
	require.InDelta(t, 50000, holdings["BTC"].AvgCost, 1e-9)
	require.InDelta(t, 10000, agent.Ledger().Cash(), 1e-9, "seeding must not deduct cash")

	require.NotEmpty(t, n.states, "creation broadcasts the initial state")
	require.Same(t, agent, r.Get(rec.ID))
}

func TestRegistryLoadRestoresActiveAgents(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	n := &fakeNotifier{}

	r := NewRegistry(store, orc, n, noopMetrics{}, testLogger(t))
	prices := models.PriceSnapshot{"BTC": {Price: 50000}}

	a, err := r.Create(ctx, CreateAgentParams{Name: "one", Model: "m", Allowance: 5000}, prices)
	require.NoError(t, err)
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideBuy, 0.05, 50000, "", models.ModePaper)
	require.NoError(t, err)

	b, err := r.Create(ctx, CreateAgentParams{Name: "two", Model: "m", Allowance: 1000}, prices)
	require.NoError(t, err)
	require.NoError(t, r.Remove(ctx, b.ID()))

	// A fresh registry over the same store sees only the active agent, with
	// its balance replayed from the trade log.
	r2 := NewRegistry(store, orc, n, noopMetrics{}, testLogger(t))
	count, err := r2.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	restored := r2.Get(a.ID())
	require.NotNil(t, restored)
	require.InDelta(t, 2500, restored.Ledger().Cash(), 1e-6)
	require.InDelta(t, 0.05, restored.Ledger().Holdings()["BTC"].Quantity, 1e-9)
}

func TestRegistryRemoveKeepsHistory(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	n := &fakeNotifier{}
	r := NewRegistry(store, orc, n, noopMetrics{}, testLogger(t))

	a, err := r.Create(ctx, CreateAgentParams{Name: "gone", Model: "m", Allowance: 1000}, nil)
	require.NoError(t, err)
	_, err = a.Ledger().RecordHold(ctx, "thinking", time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, a.ID()))
	require.Nil(t, r.Get(a.ID()))
	require.Equal(t, []string{a.ID()}, n.removed)

	trades, err := store.Trades(ctx, a.ID(), 0)
	require.NoError(t, err)
	require.Len(t, trades, 1, "soft delete retains the trade log")
}

func TestRegistryOnTickReachesEveryAgent(t *testing.T) {
	ctx := context.Background()
	r, orc, _ := testRegistry(t)

	prices := models.PriceSnapshot{"BTC": {Price: 50000}}
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Create(ctx, CreateAgentParams{
			Name: name, Model: "m", Allowance: 1000, TradeInterval: time.Millisecond,
		}, prices)
		require.NoError(t, err)
	}

	r.OnTick(ctx, prices)

	require.Eventually(t, func() bool { return orc.callCount() == 3 },
		time.Second, 5*time.Millisecond)
}

func TestSessionArchiver(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	n := &fakeNotifier{}
	r := NewRegistry(store, orc, n, noopMetrics{}, testLogger(t))

	prices := models.PriceSnapshot{"BTC": {Price: 50000}}
	a, err := r.Create(ctx, CreateAgentParams{Name: "archived", Model: "m", Allowance: 10000}, prices)
	require.NoError(t, err)

	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideBuy, 0.1, 50000, "entry", models.ModePaper)
	require.NoError(t, err)
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideSell, 0.1, 52000, "exit", models.ModePaper)
	require.NoError(t, err)
	_, err = a.Ledger().RecordHold(ctx, "done", time.Now().UTC())
	require.NoError(t, err)

	arc := NewSessionArchiver(store, orc, testLogger(t))
	id, err := arc.Archive(ctx, a, prices, "manual save")
	require.NoError(t, err)

	sess, err := store.Session(ctx, id)
	require.NoError(t, err)
	require.Equal(t, a.ID(), sess.AgentID)
	require.Equal(t, 1, sess.BuyCount)
	require.Equal(t, 1, sess.SellCount)
	require.Equal(t, 1, sess.HoldCount)
	require.Equal(t, 2, sess.TradeCount, "holds do not count as trades")
	require.InDelta(t, 10200, sess.FinalValue, 1e-6)
	require.InDelta(t, 200, sess.PnL, 1e-6)
	require.InDelta(t, 2, sess.PnLPct, 1e-6)
	require.Equal(t, "manual save", sess.Notes)
	require.Equal(t, "steady session, mostly holds", sess.Summary)
	require.Len(t, sess.Trades, 3)
}

func TestSessionArchiverRecoverRemovedAgent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	r := NewRegistry(store, orc, &fakeNotifier{}, noopMetrics{}, testLogger(t))

	prices := models.PriceSnapshot{"BTC": {Price: 50000}}
	a, err := r.Create(ctx, CreateAgentParams{Name: "lost", Model: "m", Allowance: 10000}, prices)
	require.NoError(t, err)
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideBuy, 0.1, 40000, "entry", models.ModePaper)
	require.NoError(t, err)
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideSell, 0.05, 50000, "trim", models.ModePaper)
	require.NoError(t, err)
	require.NoError(t, r.Remove(ctx, a.ID()))

	arc := NewSessionArchiver(store, orc, testLogger(t))
	id, err := arc.Recover(ctx, a.ID(), prices, "salvaged after removal")
	require.NoError(t, err)

	sess, err := store.Session(ctx, id)
	require.NoError(t, err)
	require.Equal(t, a.ID(), sess.AgentID)
	require.Equal(t, 1, sess.BuyCount)
	require.Equal(t, 1, sess.SellCount)
	require.Equal(t, 2, sess.TradeCount)
	require.Equal(t, "salvaged after removal", sess.Notes)
	require.Equal(t, "steady session, mostly holds", sess.Summary)

	// Valuation replays the trade log: 10000 - 4000 + 2500 cash plus the
	// remaining 0.05 BTC at the quoted price.
	require.InDelta(t, 11000, sess.FinalValue, 1e-6)
	require.InDelta(t, 1000, sess.PnL, 1e-6)

	trades, err := store.Trades(ctx, a.ID(), 0)
	require.NoError(t, err)
	require.NotNil(t, sess.StartedAt)
	require.True(t, sess.StartedAt.Equal(trades[0].Timestamp), "start falls back to the first trade")
	require.True(t, sess.EndedAt.Equal(trades[len(trades)-1].Timestamp), "a removed agent ends at its last trade")

	_, err = arc.Recover(ctx, "nope", prices, "")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSessionArchiverRecaptureRefreshesSession(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	orc := &fakeOracle{decision: &models.Decision{Action: models.ActionHold}}
	r := NewRegistry(store, orc, &fakeNotifier{}, noopMetrics{}, testLogger(t))

	prices := models.PriceSnapshot{"BTC": {Price: 50000}}
	a, err := r.Create(ctx, CreateAgentParams{Name: "early", Model: "m", Allowance: 10000}, prices)
	require.NoError(t, err)
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideBuy, 0.1, 50000, "entry", models.ModePaper)
	require.NoError(t, err)

	arc := NewSessionArchiver(store, orc, testLogger(t))
	id, err := arc.Archive(ctx, a, prices, "saved too soon")
	require.NoError(t, err)

	// Trading continues after the save; recapture folds it in.
	_, err = a.Ledger().ExecuteTrade(ctx, "BTC", models.SideSell, 0.1, 52000, "exit", models.ModePaper)
	require.NoError(t, err)

	sess, err := arc.Recapture(ctx, id, prices)
	require.NoError(t, err)
	require.Equal(t, id, sess.ID)
	require.Equal(t, 1, sess.BuyCount)
	require.Equal(t, 1, sess.SellCount)
	require.Equal(t, 2, sess.TradeCount)
	require.Equal(t, "saved too soon", sess.Notes, "recapture keeps the original notes")
	require.InDelta(t, 10200, sess.FinalValue, 1e-6)

	stored, err := store.Session(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TradeCount)
	require.InDelta(t, 200, stored.PnL, 1e-6)
	require.Len(t, stored.Trades, 2)

	_, err = arc.Recapture(ctx, id+99, prices)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
