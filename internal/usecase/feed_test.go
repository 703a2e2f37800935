package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PhantomEx/internal/domain/models"
)

type stubSource struct {
	snaps []models.PriceSnapshot
	calls int
	err   error
}

func (s *stubSource) Fetch(context.Context) (models.PriceSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snap := s.snaps[s.calls%len(s.snaps)]
	s.calls++
	return snap, nil
}

func (s *stubSource) History(context.Context, string, int) ([]models.Candle, error) {
	return nil, nil
}

func (s *stubSource) Symbols() []string { return []string{"BTC", "ETH"} }

func writeReplayFile(t *testing.T, snaps []models.ReplaySnapshot) string {
	t.Helper()
	b, err := json.Marshal(snaps)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "replay.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestFeedReplayEmitsRecordedSnapshots(t *testing.T) {
	recorded := []models.ReplaySnapshot{
		{Prices: models.PriceSnapshot{"BTC": {Price: 100}}},
		{Prices: models.PriceSnapshot{"BTC": {Price: 110}}},
		{Prices: models.PriceSnapshot{"BTC": {Price: 90}}},
	}
	path := writeReplayFile(t, recorded)

	feed := NewMarketFeed(FeedReplay, time.Millisecond, path, &stubSource{}, testStore(t), noopMetrics{}, testLogger(t))

	var got []models.PriceSnapshot
	feed.Subscribe(func(p models.PriceSnapshot) { got = append(got, p) })

	err := feed.Start(context.Background())
	require.NoError(t, err, "replay ends cleanly after the last snapshot")
	require.Len(t, got, 3)
	require.InDelta(t, 90, got[2].PriceOf("BTC"), 1e-9)
	require.InDelta(t, 90, feed.Prices().PriceOf("BTC"), 1e-9, "latest snapshot tracks the last emission")
}

func TestFeedReplayStopsOnCancel(t *testing.T) {
	recorded := []models.ReplaySnapshot{
		{Prices: models.PriceSnapshot{"BTC": {Price: 100}}},
		{Prices: models.PriceSnapshot{"BTC": {Price: 110}}},
	}
	path := writeReplayFile(t, recorded)

	feed := NewMarketFeed(FeedReplay, time.Hour, path, &stubSource{}, testStore(t), noopMetrics{}, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	feed.Subscribe(func(models.PriceSnapshot) { cancel() })

	err := feed.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFeedReplayMissingFile(t *testing.T) {
	feed := NewMarketFeed(FeedReplay, time.Millisecond, "/nonexistent/replay.json", &stubSource{}, testStore(t), noopMetrics{}, testLogger(t))
	require.Error(t, feed.Start(context.Background()))
}

func TestFeedUnknownMode(t *testing.T) {
	feed := NewMarketFeed("fantasy", time.Millisecond, "", &stubSource{}, testStore(t), noopMetrics{}, testLogger(t))
	require.Error(t, feed.Start(context.Background()))
}

func TestFeedLivePersistsAndFansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := testStore(t)

	src := &stubSource{snaps: []models.PriceSnapshot{
		{"BTC": {Price: 50000, Timestamp: time.Now().UTC()}},
	}}
	feed := NewMarketFeed(FeedLive, time.Hour, "", src, store, noopMetrics{}, testLogger(t))

	var got []models.PriceSnapshot
	feed.Subscribe(func(p models.PriceSnapshot) {
		got = append(got, p)
		cancel()
	})

	err := feed.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1, "first tick fires immediately, before the first interval")
	require.InDelta(t, 50000, got[0].PriceOf("BTC"), 1e-9)
}
