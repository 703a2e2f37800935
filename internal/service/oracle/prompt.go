package oracle

import (
	"fmt"
	"sort"
	"strings"

	"PhantomEx/internal/domain/models"
)

const baseSystemPrompt = `You are PhantomEx, an AI crypto trading agent. You analyze market data and make trading decisions.

You will receive:
- Current prices and 24h changes for available assets
- Your current portfolio (cash balance + holdings)

Respond ONLY with a valid JSON object in this exact format:
{
  "action": "buy" | "sell" | "hold",
  "symbol": "BTC" | "ETH" | "SOL" | "BNB" | "XRP" | "ADA" | "DOGE" | "AVAX" | "DOT" | "MATIC",
  "quantity": <float> (required if action is buy/sell),
  "reasoning": "<your reasoning in 1-2 sentences>"
}

Rules:
- quantity is the NUMBER OF COINS/TOKENS, not dollar amount. BTC costs ~$60000 each so 0.001 BTC = $60
- Never sell more than you own
- If uncertain, prefer hold
- quantity must be a positive number (can be fractional, e.g. 0.001)

`

var riskInstructions = map[models.RiskProfile]string{
	models.RiskAggressive: `Risk profile: AGGRESSIVE
- Trade frequently, act on smaller signals, don't wait for certainty
- You may spend up to 40% of your cash balance on a single trade
- Prefer higher-volatility altcoins (SOL, AVAX, DOGE, MATIC, ADA) for bigger gains
- Buy dips aggressively, ride momentum
- Take profits quickly, hold positions for shorter periods
- Maximise returns, accept higher risk`,

	models.RiskNeutral: `Risk profile: NEUTRAL
- Standard approach: spend up to 20% of cash per trade
- Balance between BTC/ETH and mid-cap altcoins
- Hold for medium-term trends, act on clear signals`,

	models.RiskSafe: `Risk profile: SAFE
- Trade conservatively, only act on very strong, clear signals
- Never spend more than 10% of cash on a single trade
- Stick to BTC and ETH only, avoid high-volatility altcoins
- When uncertain, ALWAYS hold
- Capital preservation is the priority over gains
- Require stronger confirmation before entering any position`,
}

func buildSystemPrompt(goal string, profile models.RiskProfile) string {
	if goal == "" {
		goal = "Grow the portfolio value over time."
	}
	risk, ok := riskInstructions[profile]
	if !ok {
		risk = riskInstructions[models.RiskNeutral]
	}
	return baseSystemPrompt + "Your trading goal: " + goal + "\n\n" + risk
}

// buildMarketContext renders the per-cycle user message: the snapshot and the
// agent's portfolio, in a stable symbol order.
func buildMarketContext(prices models.PriceSnapshot, portfolio *models.PortfolioView) string {
	var b strings.Builder
	b.WriteString("=== MARKET PRICES ===\n")
	for _, symbol := range sortedKeys(prices) {
		q := prices[symbol]
		arrow := "up"
		change := q.Change24h
		if change < 0 {
			arrow = "down"
			change = -change
		}
		fmt.Fprintf(&b, "%s: $%.2f  %s %.2f%% 24h\n", symbol, q.Price, arrow, change)
	}

	b.WriteString("\n=== YOUR PORTFOLIO ===\n")
	fmt.Fprintf(&b, "Cash: $%.2f\n", portfolio.Cash)
	if len(portfolio.Holdings) > 0 {
		b.WriteString("Holdings:\n")
		for _, symbol := range sortedKeys(portfolio.Holdings) {
			h := portfolio.Holdings[symbol]
			value := h.Quantity * prices.PriceOf(symbol)
			fmt.Fprintf(&b, "  %s: %.6f units @ $%.2f avg  (current value: $%.2f)\n",
				symbol, h.Quantity, h.AvgCost, value)
		}
	} else {
		b.WriteString("Holdings: none\n")
	}
	fmt.Fprintf(&b, "Total Portfolio Value: $%.2f", portfolio.TotalValue)
	return b.String()
}

// buildSummaryPrompt renders the one-shot session retrospective request.
func buildSummaryPrompt(sess *models.SavedSession) string {
	assetCounts := make(map[string]int)
	for _, t := range sess.Trades {
		if t.Side == models.SideBuy || t.Side == models.SideSell {
			assetCounts[t.Symbol]++
		}
	}
	type symCount struct {
		sym string
		n   int
	}
	counts := make([]symCount, 0, len(assetCounts))
	for sym, n := range assetCounts {
		counts = append(counts, symCount{sym, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].sym < counts[j].sym
	})
	if len(counts) > 5 {
		counts = counts[:5]
	}
	top := make([]string, 0, len(counts))
	for _, c := range counts {
		top = append(top, fmt.Sprintf("%sx%d", c.sym, c.n))
	}
	topAssets := strings.Join(top, ", ")
	if topAssets == "" {
		topAssets = "none"
	}

	durStr := "unknown"
	if sess.Duration > 0 {
		h := int(sess.Duration.Hours())
		m := int(sess.Duration.Minutes()) % 60
		if h > 0 {
			durStr = fmt.Sprintf("%dh %dm", h, m)
		} else {
			durStr = fmt.Sprintf("%dm", m)
		}
	}

	goal := sess.Goal
	if goal == "" {
		goal = "none specified"
	}

	var b strings.Builder
	b.WriteString("Briefly analyse this paper crypto trading session in 2-4 sentences.\n")
	fmt.Fprintf(&b, "Agent: %s  Model: %s  Risk: %s\n", sess.AgentName, sess.Model, sess.RiskProfile)
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Duration: %s\n", durStr)
	fmt.Fprintf(&b, "Starting balance: $%.2f  Final value: $%.2f\n", sess.Allowance, sess.FinalValue)
	fmt.Fprintf(&b, "P&L: %+.2f (%+.2f%%)\n", sess.PnL, sess.PnLPct)
	fmt.Fprintf(&b, "Decisions: %d buys  %d sells  %d holds\n", sess.BuyCount, sess.SellCount, sess.HoldCount)
	fmt.Fprintf(&b, "Top assets traded: %s\n\n", topAssets)
	b.WriteString("Be direct and factual. Cover: profitability, main trading patterns, risk behaviour, " +
		"and one concrete suggestion for improvement. Max 4 sentences.")
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
