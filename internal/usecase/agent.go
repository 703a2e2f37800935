package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	applogger "PhantomEx/pkg/logger"
)

// Agent runs the per-tick decision cycle for one trading agent: throttle,
// oracle call, and decision application against its own Ledger. Every agent
// owns exactly one Ledger; there is no cross-agent state.
type Agent struct {
	ledger   *Ledger
	oracle   drepo.Oracle
	store    drepo.Store
	notifier drepo.Notifier
	metrics  drepo.Metrics
	log      *applogger.Logger

	// inFlight guards against overlapping cycles for this agent. Ticks
	// arriving while a cycle is outstanding are dropped, not queued.
	inFlight atomic.Bool

	mu          sync.Mutex
	rec         models.AgentRecord
	lastRunAt   time.Time
	stopped     bool
	pending     *models.Decision
	lastThought *models.Decision
}

func NewAgent(rec *models.AgentRecord, ledger *Ledger, oracle drepo.Oracle, store drepo.Store, notifier drepo.Notifier, metrics drepo.Metrics, log *applogger.Logger) *Agent {
	return &Agent{
		ledger:   ledger,
		oracle:   oracle,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		rec:      *rec,
	}
}

func (a *Agent) ID() string      { return a.rec.ID }
func (a *Agent) Ledger() *Ledger { return a.ledger }

// Record returns a copy of the agent's current configuration.
func (a *Agent) Record() models.AgentRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec
}

// State builds the full outward snapshot broadcast to observers.
func (a *Agent) State(prices models.PriceSnapshot) *models.AgentState {
	a.mu.Lock()
	rec := a.rec
	running := !a.stopped
	pending := a.pending
	thought := a.lastThought
	a.mu.Unlock()

	return &models.AgentState{
		AgentRecord:     rec,
		Running:         running,
		PendingDecision: pending,
		LastThought:     thought,
		Portfolio:       a.ledger.View(prices),
	}
}

// RunCycle executes one decision cycle against the given snapshot. It is a
// no-op when the snapshot is empty, the trade interval has not elapsed, or a
// prior cycle for this agent is still outstanding. The cycle is lost on
// oracle failure; the next tick retries naturally.
func (a *Agent) RunCycle(ctx context.Context, prices models.PriceSnapshot) {
	if len(prices) == 0 {
		return
	}
	if !a.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer a.inFlight.Store(false)

	now := time.Now().UTC()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if now.Sub(a.lastRunAt) < a.rec.TradeInterval {
		a.mu.Unlock()
		return
	}
	a.lastRunAt = now

	if a.rec.StartedAt == nil {
		started := now
		a.rec.StartedAt = &started
		if err := a.store.SetAgentStartedAt(ctx, a.rec.ID, started); err != nil {
			a.log.Warn("persist started_at failed", applogger.String("agent", a.rec.ID), applogger.Error(err))
		}
	}

	if a.rec.MaxDuration > 0 && now.Sub(*a.rec.StartedAt) >= a.rec.MaxDuration {
		a.stopped = true
		a.mu.Unlock()
		a.log.Info("agent session expired", applogger.String("agent", a.rec.ID))
		a.notifier.AgentState(a.State(prices))
		return
	}

	rec := a.rec
	mode := a.rec.Mode
	a.mu.Unlock()

	a.metrics.RecordCycle(rec.ID)

	start := time.Now()
	decision, err := a.oracle.Decide(ctx, &rec, prices, a.ledger.View(prices))
	a.metrics.RecordOracleLatency(time.Since(start).Seconds())
	if err != nil {
		a.log.Error("oracle call failed", applogger.String("agent", rec.ID), applogger.Error(err))
		a.metrics.RecordError("oracle")
		return
	}

	a.mu.Lock()
	a.lastThought = decision
	a.mu.Unlock()

	switch mode {
	case models.ModeAdvisory:
		// At most one pending decision; a newer one overwrites.
		a.mu.Lock()
		a.pending = decision
		a.mu.Unlock()
		a.notifier.PendingDecision(rec.ID, decision)
	default:
		a.apply(ctx, decision, prices)
	}

	a.recordEquity(ctx, prices)
	a.notifier.AgentState(a.State(prices))
}

// apply executes a decision through the ledger. Hold decisions become
// zero-value trade rows. Buy/sell decisions with a non-positive quantity, an
// empty symbol, or a symbol absent from the snapshot are dropped silently;
// ledger validation rejections are logged and otherwise swallowed.
func (a *Agent) apply(ctx context.Context, d *models.Decision, prices models.PriceSnapshot) {
	if d.Action == models.ActionHold {
		trade, err := a.ledger.RecordHold(ctx, d.Reasoning, d.Timestamp)
		if err != nil {
			a.log.Error("persist hold failed", applogger.String("agent", a.rec.ID), applogger.Error(err))
			a.metrics.RecordError("persist")
			return
		}
		a.metrics.RecordTrade(string(models.SideHold))
		a.notifier.TradeExecuted(a.rec.ID, trade)
		return
	}

	symbol := strings.ToUpper(d.Symbol)
	if symbol == "" || d.Quantity <= 0 || !prices.Has(symbol) {
		return
	}

	trade, err := a.ledger.ExecuteTrade(ctx, symbol, models.TradeSide(d.Action), d.Quantity, prices.PriceOf(symbol), d.Reasoning, models.ModePaper)
	if err != nil {
		a.log.Warn("trade rejected",
			applogger.String("agent", a.rec.ID),
			applogger.String("symbol", symbol),
			applogger.Error(err))
		return
	}
	a.metrics.RecordTrade(string(trade.Side))
	a.notifier.TradeExecuted(a.rec.ID, trade)
}

func (a *Agent) recordEquity(ctx context.Context, prices models.PriceSnapshot) {
	view := a.ledger.View(prices)
	point := models.EquityPoint{
		TotalValue: view.TotalValue,
		Cash:       view.Cash,
		Timestamp:  time.Now().UTC().Truncate(time.Second),
	}
	if err := a.store.SaveEquityPoint(ctx, a.rec.ID, point); err != nil {
		a.log.Warn("persist equity failed", applogger.String("agent", a.rec.ID), applogger.Error(err))
	}
	a.metrics.RecordEquity(a.rec.ID, view.TotalValue)
}

// ApprovePending applies the queued advisory decision through the same
// ledger path as autonomous execution and clears it.
func (a *Agent) ApprovePending(ctx context.Context, prices models.PriceSnapshot) {
	a.mu.Lock()
	d := a.pending
	a.pending = nil
	a.mu.Unlock()
	if d == nil {
		return
	}
	a.apply(ctx, d, prices)
	a.notifier.AgentState(a.State(prices))
}

// RejectPending discards the queued advisory decision with no side effect.
func (a *Agent) RejectPending() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}

// Pending returns the queued advisory decision, if any.
func (a *Agent) Pending() *models.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Stopped reports whether the session timer has expired.
func (a *Agent) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// SetMode switches decision application between autonomous and advisory.
func (a *Agent) SetMode(ctx context.Context, mode models.AgentMode) error {
	if err := a.store.SetAgentMode(ctx, a.rec.ID, mode); err != nil {
		return err
	}
	a.mu.Lock()
	a.rec.Mode = mode
	a.mu.Unlock()
	return nil
}

// SetRisk changes the risk profile; it takes effect on the next cycle.
func (a *Agent) SetRisk(ctx context.Context, profile models.RiskProfile) error {
	if err := a.store.SetAgentRisk(ctx, a.rec.ID, profile); err != nil {
		return err
	}
	a.mu.Lock()
	a.rec.RiskProfile = profile
	a.mu.Unlock()
	return nil
}

// SetMaxDuration sets or clears (d == 0) the session time box.
func (a *Agent) SetMaxDuration(ctx context.Context, d time.Duration) error {
	if err := a.store.SetAgentMaxDuration(ctx, a.rec.ID, d); err != nil {
		return err
	}
	a.mu.Lock()
	a.rec.MaxDuration = d
	a.mu.Unlock()
	return nil
}

// Deposit adds cash to the agent's ledger and raises its allowance baseline.
func (a *Agent) Deposit(ctx context.Context, amount float64) error {
	if err := a.ledger.Deposit(ctx, amount); err != nil {
		return err
	}
	a.mu.Lock()
	a.rec.Allowance += amount
	a.mu.Unlock()
	return nil
}
