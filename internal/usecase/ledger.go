package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
)

// Ledger validation errors. All of them are recoverable: the caller skips the
// trade and the ledger is left untouched.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidSide          = errors.New("invalid trade side")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// Ledger tracks one agent's cash balance and open positions. It is owned 1:1
// by its Agent; the mutex only serializes agent cycles against operator
// actions (deposit, advisory approval) arriving over the transport.
//
// State is derived from persisted allowance plus the append-only trade log,
// so it can always be rebuilt after a restart.
type Ledger struct {
	agentID string
	store   drepo.Store

	mu       sync.Mutex
	cash     float64
	holdings map[string]models.Holding
}

func NewLedger(agentID string, store drepo.Store) *Ledger {
	return &Ledger{
		agentID:  agentID,
		store:    store,
		holdings: make(map[string]models.Holding),
	}
}

// Load rebuilds cash and holdings from the persisted state: cash by replaying
// the trade log against the allowance, holdings from the snapshot table
// (which includes seeded positions that never went through a trade).
// Idempotent; an agent with no trades ends up with cash == allowance.
func (l *Ledger) Load(ctx context.Context, allowance float64) error {
	trades, err := l.store.Trades(ctx, l.agentID, 0)
	if err != nil {
		return err
	}
	rows, err := l.store.Holdings(ctx, l.agentID)
	if err != nil {
		return err
	}

	cash, _ := Reconstruct(allowance, trades)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = cash
	l.holdings = make(map[string]models.Holding, len(rows))
	for _, h := range rows {
		if h.Quantity > 0 {
			l.holdings[h.Symbol] = h
		}
	}
	return nil
}

// Reconstruct replays a trade log against a starting allowance and returns
// the resulting cash and holdings. Pure: it touches no live state, which
// makes the cash invariant checkable against arbitrary trade sequences.
func Reconstruct(allowance float64, trades []models.Trade) (float64, map[string]models.Holding) {
	cash := allowance
	holdings := make(map[string]models.Holding)
	for _, t := range trades {
		switch t.Side {
		case models.SideBuy:
			cash -= t.Total
			h, ok := holdings[t.Symbol]
			if ok {
				newQty := h.Quantity + t.Quantity
				h.AvgCost = (h.AvgCost*h.Quantity + t.Price*t.Quantity) / newQty
				h.Quantity = newQty
			} else {
				h = models.Holding{Symbol: t.Symbol, Quantity: t.Quantity, AvgCost: t.Price}
			}
			holdings[t.Symbol] = h
		case models.SideSell:
			cash += t.Total
			h, ok := holdings[t.Symbol]
			if !ok {
				continue
			}
			h.Quantity -= t.Quantity
			if h.Quantity <= 0 {
				delete(holdings, t.Symbol)
			} else {
				holdings[t.Symbol] = h
			}
		}
	}
	return cash, holdings
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Holdings returns a copy of the open positions.
func (l *Ledger) Holdings() map[string]models.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]models.Holding, len(l.holdings))
	for sym, h := range l.holdings {
		out[sym] = h
	}
	return out
}

// TotalValue is cash plus the live value of every position. A symbol missing
// from the snapshot contributes zero rather than failing the valuation.
func (l *Ledger) TotalValue(prices models.PriceSnapshot) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValueLocked(prices)
}

func (l *Ledger) totalValueLocked(prices models.PriceSnapshot) float64 {
	total := l.cash
	for sym, h := range l.holdings {
		total += h.Quantity * prices.PriceOf(sym)
	}
	return total
}

// UnrealizedPnL reports per-symbol profit against cost basis. Pct is zero
// when the cost basis is zero.
func (l *Ledger) UnrealizedPnL(prices models.PriceSnapshot) map[string]models.PnL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unrealizedPnLLocked(prices)
}

func (l *Ledger) unrealizedPnLLocked(prices models.PriceSnapshot) map[string]models.PnL {
	pnl := make(map[string]models.PnL, len(l.holdings))
	for sym, h := range l.holdings {
		costBasis := h.Quantity * h.AvgCost
		currentValue := h.Quantity * prices.PriceOf(sym)
		p := models.PnL{Unrealized: currentValue - costBasis}
		if costBasis != 0 {
			p.Pct = (currentValue - costBasis) / costBasis * 100
		}
		pnl[sym] = p
	}
	return pnl
}

// View builds the outward portfolio snapshot at the given prices.
func (l *Ledger) View(prices models.PriceSnapshot) *models.PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()
	holdings := make(map[string]models.Holding, len(l.holdings))
	for sym, h := range l.holdings {
		holdings[sym] = h
	}
	return &models.PortfolioView{
		AgentID:       l.agentID,
		Cash:          l.cash,
		Holdings:      holdings,
		TotalValue:    l.totalValueLocked(prices),
		UnrealizedPnL: l.unrealizedPnLLocked(prices),
	}
}

// Deposit adds cash and bumps the persisted allowance in one step so a later
// Load reconstructs against the new baseline.
func (l *Ledger) Deposit(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.AddAllowance(ctx, l.agentID, amount); err != nil {
		return err
	}
	l.cash += amount
	return nil
}

// Seed inserts a declared position at the given price without deducting
// cash. Used when an agent is created with initial holdings.
func (l *Ledger) Seed(ctx context.Context, symbol string, quantity, price float64) error {
	if quantity <= 0 || price <= 0 {
		return ErrInvalidAmount
	}
	h := models.Holding{Symbol: symbol, Quantity: quantity, AvgCost: price}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.SeedHolding(ctx, l.agentID, h); err != nil {
		return err
	}
	l.holdings[symbol] = h
	return nil
}

// ExecuteTrade validates and applies a buy or sell. The mutation is computed
// first and persisted before memory is touched, so a persistence failure
// leaves the ledger exactly as it was. The returned Trade carries the same
// timestamp as the persisted row.
func (l *Ledger) ExecuteTrade(ctx context.Context, symbol string, side models.TradeSide, quantity, price float64, reasoning string, mode models.TradeMode) (*models.Trade, error) {
	if side != models.SideBuy && side != models.SideSell {
		return nil, ErrInvalidSide
	}
	if quantity <= 0 || price <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := quantity * price
	var next *models.Holding // nil means the position is closed

	switch side {
	case models.SideBuy:
		if total > l.cash {
			return nil, ErrInsufficientFunds
		}
		if h, ok := l.holdings[symbol]; ok {
			newQty := h.Quantity + quantity
			next = &models.Holding{
				Symbol:   symbol,
				Quantity: newQty,
				AvgCost:  (h.AvgCost*h.Quantity + price*quantity) / newQty,
			}
		} else {
			next = &models.Holding{Symbol: symbol, Quantity: quantity, AvgCost: price}
		}
	case models.SideSell:
		h, ok := l.holdings[symbol]
		if !ok || h.Quantity < quantity {
			return nil, ErrInsufficientHoldings
		}
		remaining := h.Quantity - quantity
		// Exact zero expected; the <= 0 guard absorbs floating-point drift.
		if remaining > 0 {
			next = &models.Holding{Symbol: symbol, Quantity: remaining, AvgCost: h.AvgCost}
		}
	default:
		return nil, ErrInvalidSide
	}

	trade := &models.Trade{
		AgentID:   l.agentID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Total:     total,
		Reasoning: reasoning,
		Mode:      mode,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	if err := l.store.SaveTrade(ctx, trade, next); err != nil {
		return nil, err
	}

	if side == models.SideBuy {
		l.cash -= total
	} else {
		l.cash += total
	}
	if next != nil {
		l.holdings[symbol] = *next
	} else {
		delete(l.holdings, symbol)
	}
	return trade, nil
}

// RecordHold appends a zero-value hold row so the trade log shows every
// think cycle. Holdings are untouched.
func (l *Ledger) RecordHold(ctx context.Context, reasoning string, ts time.Time) (*models.Trade, error) {
	trade := &models.Trade{
		AgentID:   l.agentID,
		Side:      models.SideHold,
		Reasoning: reasoning,
		Mode:      models.ModePaper,
		Timestamp: ts,
	}
	if err := l.store.SaveTrade(ctx, trade, nil); err != nil {
		return nil, err
	}
	return trade, nil
}
