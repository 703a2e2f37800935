package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	applogger "PhantomEx/pkg/logger"
)

// CreateAgentParams carries a new agent's configuration.
type CreateAgentParams struct {
	Name          string
	Model         string
	Mode          models.AgentMode
	Allowance     float64
	Goal          string
	TradeInterval time.Duration
	RiskProfile   models.RiskProfile
	MaxDuration   time.Duration
	// InitialHoldings are declared positions seeded at the current price
	// without deducting cash: symbol -> quantity.
	InitialHoldings map[string]float64
}

// Registry owns the collection of live agents for the process lifetime and
// is its single writer. It injects the oracle, store, and notifier into each
// agent it constructs.
type Registry struct {
	store    drepo.Store
	oracle   drepo.Oracle
	notifier drepo.Notifier
	metrics  drepo.Metrics
	log      *applogger.Logger

	mu     sync.RWMutex
	agents map[string]*Agent
}

func NewRegistry(store drepo.Store, oracle drepo.Oracle, notifier drepo.Notifier, metrics drepo.Metrics, log *applogger.Logger) *Registry {
	return &Registry{
		store:    store,
		oracle:   oracle,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		agents:   make(map[string]*Agent),
	}
}

// Create persists a new agent row and constructs the in-memory agent with a
// fresh ledger (cash equals the starting allowance). Declared initial
// holdings are seeded at the snapshot price; unpriced symbols are skipped.
func (r *Registry) Create(ctx context.Context, p CreateAgentParams, prices models.PriceSnapshot) (*Agent, error) {
	rec := &models.AgentRecord{
		ID:            uuid.NewString(),
		Name:          p.Name,
		Model:         p.Model,
		Mode:          p.Mode,
		Allowance:     p.Allowance,
		Goal:          p.Goal,
		TradeInterval: p.TradeInterval,
		RiskProfile:   p.RiskProfile,
		MaxDuration:   p.MaxDuration,
		Active:        true,
	}
	if rec.Mode == "" {
		rec.Mode = models.ModeAutonomous
	}
	if rec.RiskProfile == "" {
		rec.RiskProfile = models.RiskNeutral
	}
	if rec.TradeInterval <= 0 {
		rec.TradeInterval = time.Minute
	}

	if err := r.store.CreateAgent(ctx, rec); err != nil {
		return nil, err
	}

	ledger := NewLedger(rec.ID, r.store)
	if err := ledger.Load(ctx, rec.Allowance); err != nil {
		return nil, err
	}

	for symbol, qty := range p.InitialHoldings {
		symbol = strings.ToUpper(symbol)
		if qty <= 0 || !prices.Has(symbol) {
			continue
		}
		if err := ledger.Seed(ctx, symbol, qty, prices.PriceOf(symbol)); err != nil {
			r.log.Warn("seed holding failed",
				applogger.String("agent", rec.ID),
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
	}

	agent := NewAgent(rec, ledger, r.oracle, r.store, r.notifier, r.metrics, r.log)

	r.mu.Lock()
	r.agents[rec.ID] = agent
	r.mu.Unlock()

	r.notifier.AgentState(agent.State(prices))
	return agent, nil
}

// Load rehydrates every persisted active agent on process start, including
// its accrued session timer. Returns the number of agents restored.
func (r *Registry) Load(ctx context.Context) (int, error) {
	recs, err := r.store.ActiveAgents(ctx)
	if err != nil {
		return 0, err
	}

	for _, rec := range recs {
		ledger := NewLedger(rec.ID, r.store)
		if err := ledger.Load(ctx, rec.Allowance); err != nil {
			return 0, err
		}
		agent := NewAgent(rec, ledger, r.oracle, r.store, r.notifier, r.metrics, r.log)
		r.mu.Lock()
		r.agents[rec.ID] = agent
		r.mu.Unlock()
	}

	if len(recs) > 0 {
		r.log.Info("agents restored", applogger.Int("count", len(recs)))
	}
	return len(recs), nil
}

// Get returns the live agent with the given id, or nil.
func (r *Registry) Get(agentID string) *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// All returns the live agents.
func (r *Registry) All() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Remove evicts the agent from memory and soft-deletes its persisted row.
// Trade history is retained for audit and session recovery.
func (r *Registry) Remove(ctx context.Context, agentID string) error {
	if err := r.store.DeactivateAgent(ctx, agentID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.agents, agentID)
	r.mu.Unlock()

	r.oracle.Forget(agentID)
	r.notifier.AgentRemoved(agentID)
	return nil
}

// OnTick fans a price snapshot out to every agent. Each cycle runs in its
// own goroutine; the per-agent in-flight guard inside RunCycle keeps cycles
// from overlapping, so one slow oracle call never blocks another agent.
func (r *Registry) OnTick(ctx context.Context, prices models.PriceSnapshot) {
	for _, agent := range r.All() {
		go agent.RunCycle(ctx, prices)
	}
}
