package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	applogger "PhantomEx/pkg/logger"
)

// Feed modes.
const (
	FeedLive   = "live"
	FeedReplay = "replay"
)

// MarketFeed drives the whole system: in live mode it polls the price source
// at a fixed interval, persists the snapshot, and fans it out to subscribers;
// in replay mode it emits pre-recorded snapshots from a file at the same
// cadence and stops after the last one.
type MarketFeed struct {
	mode       string
	interval   time.Duration
	replayFile string
	source     drepo.PriceSource
	store      drepo.Store
	metrics    drepo.Metrics
	log        *applogger.Logger

	mu     sync.RWMutex
	latest models.PriceSnapshot
	subs   []func(models.PriceSnapshot)
}

func NewMarketFeed(mode string, interval time.Duration, replayFile string, source drepo.PriceSource, store drepo.Store, metrics drepo.Metrics, log *applogger.Logger) *MarketFeed {
	return &MarketFeed{
		mode:       mode,
		interval:   interval,
		replayFile: replayFile,
		source:     source,
		store:      store,
		metrics:    metrics,
		log:        log,
	}
}

// Subscribe registers a callback invoked with every emitted snapshot.
// All subscriptions must be in place before Start.
func (f *MarketFeed) Subscribe(fn func(models.PriceSnapshot)) {
	f.subs = append(f.subs, fn)
}

// Symbols returns the configured trading universe.
func (f *MarketFeed) Symbols() []string { return f.source.Symbols() }

// History fetches OHLC candles from the price source for charting.
func (f *MarketFeed) History(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	return f.source.History(ctx, symbol, days)
}

// Prices returns the most recent snapshot, for late subscribers and
// on-demand reads. Nil until the first tick.
func (f *MarketFeed) Prices() models.PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest
}

// Start runs the feed loop until ctx is cancelled (live) or the replay file
// is exhausted.
func (f *MarketFeed) Start(ctx context.Context) error {
	switch f.mode {
	case FeedLive:
		return f.runLive(ctx)
	case FeedReplay:
		return f.runReplay(ctx)
	default:
		return fmt.Errorf("unknown feed mode %q", f.mode)
	}
}

func (f *MarketFeed) runLive(ctx context.Context) error {
	f.log.Info("market feed started",
		applogger.String("mode", FeedLive),
		applogger.Duration("interval", f.interval),
		applogger.Strings("symbols", f.source.Symbols()))

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// First fetch immediately so agents do not wait a full interval.
	f.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

// tick performs one live poll. Any failure skips this tick; the loop
// continues at the next interval.
func (f *MarketFeed) tick(ctx context.Context) {
	prices, err := f.source.Fetch(ctx)
	if err != nil {
		f.log.Warn("price fetch failed", applogger.Error(err))
		f.metrics.RecordError("price_source")
		return
	}
	if err := f.store.SavePriceSnapshot(ctx, prices); err != nil {
		f.log.Warn("persist snapshot failed", applogger.Error(err))
		f.metrics.RecordError("persist")
	}
	f.emit(prices, FeedLive)
}

func (f *MarketFeed) runReplay(ctx context.Context) error {
	b, err := os.ReadFile(f.replayFile)
	if err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	var snapshots []models.ReplaySnapshot
	if err := json.Unmarshal(b, &snapshots); err != nil {
		return fmt.Errorf("parse replay file: %w", err)
	}

	f.log.Info("market feed started",
		applogger.String("mode", FeedReplay),
		applogger.String("file", f.replayFile),
		applogger.Int("snapshots", len(snapshots)))

	for _, snap := range snapshots {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f.emit(snap.Prices, FeedReplay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.interval):
		}
	}

	f.log.Info("replay complete")
	return nil
}

func (f *MarketFeed) emit(prices models.PriceSnapshot, source string) {
	f.mu.Lock()
	f.latest = prices
	subs := f.subs
	f.mu.Unlock()

	f.metrics.RecordTick(source)
	for sym, q := range prices {
		f.metrics.RecordLastPrice(sym, q.Price)
	}
	for _, fn := range subs {
		fn(prices)
	}
}
