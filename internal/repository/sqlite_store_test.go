package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PhantomEx/internal/domain/models"
	applogger "PhantomEx/pkg/logger"
	"PhantomEx/pkg/sqlite"
)

func newTestStore(t *testing.T, retention int) *SQLiteStore {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	store := NewSQLiteStore(db, retention, log)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAgent(t *testing.T, store *SQLiteStore, id string) *models.AgentRecord {
	t.Helper()
	rec := &models.AgentRecord{
		ID:            id,
		Name:          "agent-" + id,
		Model:         "llama3.1",
		Mode:          models.ModeAutonomous,
		Allowance:     10000,
		TradeInterval: time.Minute,
		RiskProfile:   models.RiskNeutral,
		Active:        true,
	}
	require.NoError(t, store.CreateAgent(context.Background(), rec))
	return rec
}

func TestAgentRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)

	newTestAgent(t, store, "a1")
	newTestAgent(t, store, "a2")

	agents, err := store.ActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	got := agents[0]
	if got.ID != "a1" {
		got = agents[1]
	}
	require.Equal(t, "a1", got.ID)
	require.Equal(t, "agent-a1", got.Name)
	require.Equal(t, models.ModeAutonomous, got.Mode)
	require.Equal(t, models.RiskNeutral, got.RiskProfile)
	require.Equal(t, time.Minute, got.TradeInterval)
	require.InDelta(t, 10000, got.Allowance, 1e-9)
	require.Nil(t, got.StartedAt, "never started")

	require.NoError(t, store.DeactivateAgent(ctx, "a2"))
	agents, err = store.ActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "a1", agents[0].ID)
}

func TestAgentUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")

	require.NoError(t, store.SetAgentMode(ctx, "a1", models.ModeAdvisory))
	require.NoError(t, store.SetAgentRisk(ctx, "a1", models.RiskAggressive))
	require.NoError(t, store.SetAgentMaxDuration(ctx, "a1", 2*time.Hour))
	require.NoError(t, store.AddAllowance(ctx, "a1", 2500))

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SetAgentStartedAt(ctx, "a1", started))

	agents, err := store.ActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	got := agents[0]
	require.Equal(t, models.ModeAdvisory, got.Mode)
	require.Equal(t, models.RiskAggressive, got.RiskProfile)
	require.Equal(t, 2*time.Hour, got.MaxDuration)
	require.InDelta(t, 12500, got.Allowance, 1e-9)
	require.NotNil(t, got.StartedAt)
	require.True(t, got.StartedAt.Equal(started))
}

func TestAgentLoadsInactiveRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")
	require.NoError(t, store.DeactivateAgent(ctx, "a1"))

	got, err := store.Agent(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	require.False(t, got.Active, "deactivated rows stay reachable by id")
	require.Equal(t, time.Minute, got.TradeInterval)

	_, err = store.Agent(ctx, "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAgentUpdateUnknownID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	err := store.SetAgentMode(ctx, "missing", models.ModeAdvisory)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSaveTradeUpsertsHolding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")

	now := time.Now().UTC().Truncate(time.Second)
	buy := &models.Trade{
		AgentID: "a1", Symbol: "BTC", Side: models.SideBuy,
		Quantity: 0.1, Price: 50000, Total: 5000,
		Reasoning: "entry", Mode: models.ModePaper, Timestamp: now,
	}
	require.NoError(t, store.SaveTrade(ctx, buy,
		&models.Holding{Symbol: "BTC", Quantity: 0.1, AvgCost: 50000}))

	// Same symbol again: the snapshot row is replaced, not duplicated.
	require.NoError(t, store.SaveTrade(ctx, buy,
		&models.Holding{Symbol: "BTC", Quantity: 0.2, AvgCost: 51000}))

	holdings, err := store.Holdings(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.InDelta(t, 0.2, holdings[0].Quantity, 1e-9)
	require.InDelta(t, 51000, holdings[0].AvgCost, 1e-9)

	// A closing sell passes a nil holding and deletes the row.
	sell := &models.Trade{
		AgentID: "a1", Symbol: "BTC", Side: models.SideSell,
		Quantity: 0.2, Price: 52000, Total: 10400,
		Mode: models.ModePaper, Timestamp: now,
	}
	require.NoError(t, store.SaveTrade(ctx, sell, nil))

	holdings, err = store.Holdings(ctx, "a1")
	require.NoError(t, err)
	require.Empty(t, holdings)

	trades, err := store.Trades(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	require.Equal(t, models.SideBuy, trades[0].Side)
	require.Equal(t, models.SideSell, trades[2].Side)
	require.Equal(t, "entry", trades[0].Reasoning)
	require.True(t, trades[0].Timestamp.Equal(now))
}

func TestTradesLimitAndAllAgents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")
	newTestAgent(t, store, "a2")

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		tr := &models.Trade{
			AgentID: "a1", Symbol: "BTC", Side: models.SideHold,
			Mode: models.ModePaper, Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.SaveTrade(ctx, tr, nil))
	}
	require.NoError(t, store.SaveTrade(ctx, &models.Trade{
		AgentID: "a2", Symbol: "ETH", Side: models.SideBuy,
		Quantity: 1, Price: 2000, Total: 2000,
		Mode: models.ModePaper, Timestamp: now,
	}, &models.Holding{Symbol: "ETH", Quantity: 1, AvgCost: 2000}))

	// Limited reads keep the newest rows in chronological order.
	trades, err := store.Trades(ctx, "a1", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.True(t, trades[0].Timestamp.Before(trades[1].Timestamp))

	all, err := store.Trades(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
}

func TestEquityCurvePrunesAtRetention(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 3)
	newTestAgent(t, store, "a1")

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveEquityPoint(ctx, "a1", models.EquityPoint{
			TotalValue: float64(10000 + i),
			Cash:       float64(5000 + i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	points, err := store.EquityCurve(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, points, 3, "rows past retention are pruned")
	require.InDelta(t, 10002, points[0].TotalValue, 1e-9, "oldest surviving sample")
	require.InDelta(t, 10004, points[2].TotalValue, 1e-9)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")

	started := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	sess := &models.SavedSession{
		AgentID:     "a1",
		AgentName:   "agent-a1",
		Model:       "llama3.1",
		RiskProfile: models.RiskNeutral,
		Goal:        "grow",
		Allowance:   10000,
		FinalValue:  10450,
		PnL:         450,
		PnLPct:      4.5,
		TradeCount:  2,
		BuyCount:    1,
		SellCount:   1,
		HoldCount:   3,
		StartedAt:   &started,
		EndedAt:     started.Add(time.Hour),
		Duration:    time.Hour,
		Notes:       "first run",
		Trades: []models.Trade{
			{AgentID: "a1", Symbol: "BTC", Side: models.SideBuy, Quantity: 0.1, Price: 50000, Total: 5000},
		},
		Equity: []models.EquityPoint{
			{TotalValue: 10450, Cash: 5450, Timestamp: started.Add(time.Hour)},
		},
		SavedAt: started.Add(time.Hour),
	}

	id, err := store.SaveSession(ctx, sess)
	require.NoError(t, err)
	require.NotZero(t, id)

	// List reads skip the serialized payloads.
	list, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, id, list[0].ID)
	require.InDelta(t, 450, list[0].PnL, 1e-9)
	require.Nil(t, list[0].Trades)
	require.Nil(t, list[0].Equity)

	require.NoError(t, store.SetSessionSummary(ctx, id, "quiet but profitable"))

	got, err := store.Session(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "quiet but profitable", got.Summary)
	require.Equal(t, "first run", got.Notes)
	require.Equal(t, time.Hour, got.Duration)
	require.NotNil(t, got.StartedAt)
	require.True(t, got.StartedAt.Equal(started))
	require.Len(t, got.Trades, 1)
	require.Equal(t, "BTC", got.Trades[0].Symbol)
	require.Len(t, got.Equity, 1)
	require.InDelta(t, 10450, got.Equity[0].TotalValue, 1e-9)

	require.NoError(t, store.DeleteSession(ctx, id))
	_, err = store.Session(ctx, id)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.ErrorIs(t, store.DeleteSession(ctx, id), sql.ErrNoRows)
}

func TestUpdateSessionRewritesRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")

	ended := time.Now().UTC().Truncate(time.Second)
	sess := &models.SavedSession{
		AgentID:    "a1",
		AgentName:  "agent-a1",
		Model:      "llama3.1",
		Allowance:  10000,
		FinalValue: 10000,
		EndedAt:    ended,
		SavedAt:    ended,
	}
	id, err := store.SaveSession(ctx, sess)
	require.NoError(t, err)

	started := ended.Add(-30 * time.Minute)
	sess.ID = id
	sess.FinalValue = 10800
	sess.PnL = 800
	sess.PnLPct = 8
	sess.TradeCount = 1
	sess.BuyCount = 1
	sess.HoldCount = 2
	sess.StartedAt = &started
	sess.Duration = 30 * time.Minute
	sess.Notes = "rebuilt from trade history"
	sess.Trades = []models.Trade{
		{AgentID: "a1", Symbol: "ETH", Side: models.SideBuy, Quantity: 1, Price: 2000, Total: 2000},
	}
	sess.Equity = []models.EquityPoint{
		{TotalValue: 10800, Cash: 8800, Timestamp: ended},
	}
	require.NoError(t, store.UpdateSession(ctx, sess))

	got, err := store.Session(ctx, id)
	require.NoError(t, err)
	require.InDelta(t, 10800, got.FinalValue, 1e-9)
	require.InDelta(t, 800, got.PnL, 1e-9)
	require.Equal(t, 1, got.TradeCount)
	require.Equal(t, 2, got.HoldCount)
	require.Equal(t, "rebuilt from trade history", got.Notes)
	require.NotNil(t, got.StartedAt)
	require.True(t, got.StartedAt.Equal(started))
	require.Equal(t, 30*time.Minute, got.Duration)
	require.Len(t, got.Trades, 1)
	require.Equal(t, "ETH", got.Trades[0].Symbol)
	require.Len(t, got.Equity, 1)

	sess.ID = id + 99
	require.ErrorIs(t, store.UpdateSession(ctx, sess), sql.ErrNoRows)
}

func TestSeedHoldingReplacesPrior(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 500)
	newTestAgent(t, store, "a1")

	require.NoError(t, store.SeedHolding(ctx, "a1",
		models.Holding{Symbol: "ETH", Quantity: 2, AvgCost: 1900}))
	require.NoError(t, store.SeedHolding(ctx, "a1",
		models.Holding{Symbol: "ETH", Quantity: 3, AvgCost: 2000}))

	holdings, err := store.Holdings(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.InDelta(t, 3, holdings[0].Quantity, 1e-9)
}
