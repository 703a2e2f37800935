package coingecko

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	"PhantomEx/internal/service/ratelimit"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// symbolToID maps the ticker symbols agents trade to CoinGecko coin ids.
// Symbols outside this map are dropped from the configured universe.
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
}

// Client implements a PriceSource backed by the CoinGecko simple-price API.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter
	symbols []string
	ids     string
	idToSym map[string]string
}

// New creates a CoinGecko PriceSource for the given symbols. baseURL == ""
// uses the public API.
func New(baseURL string, timeout time.Duration, symbols []string) drepo.PriceSource {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var (
		kept    []string
		ids     []string
		idToSym = make(map[string]string)
	)
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		id, ok := symbolToID[s]
		if !ok {
			continue
		}
		kept = append(kept, s)
		ids = append(ids, id)
		idToSym[id] = s
	}

	return &Client{
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		limiter: ratelimit.New(),
		symbols: kept,
		ids:     strings.Join(ids, ","),
		idToSym: idToSym,
	}
}

func (c *Client) Symbols() []string { return c.symbols }

type simplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
}

// Fetch pulls one snapshot for the configured universe. Coins missing from
// the response are simply absent from the snapshot.
func (c *Client) Fetch(ctx context.Context) (models.PriceSnapshot, error) {
	if c.ids == "" {
		return nil, fmt.Errorf("coingecko: no supported symbols configured")
	}
	// The free tier allows roughly 30 calls/min. Shed ticks locally instead
	// of burning them on 429 responses.
	if !c.limiter.Allow("simple_price", 5, 0.5) {
		return nil, fmt.Errorf("coingecko: local rate limit exceeded")
	}

	var body map[string]simplePrice
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 c.ids,
			"vs_currencies":       "usd",
			"include_24hr_change": "true",
			"include_24hr_vol":    "true",
		}).
		SetResult(&body).
		Get("/simple/price")
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("coingecko status %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	snap := make(models.PriceSnapshot, len(body))
	for id, p := range body {
		sym, ok := c.idToSym[id]
		if !ok || p.USD <= 0 {
			continue
		}
		snap[sym] = models.PriceQuote{
			Price:     p.USD,
			Change24h: p.USD24hChange,
			Volume24h: p.USD24hVol,
			Timestamp: now,
		}
	}
	if len(snap) == 0 {
		return nil, fmt.Errorf("coingecko: empty snapshot")
	}
	return snap, nil
}

// History fetches OHLC candles for charting. Symbols outside the supported
// map are tried lowercased as a raw CoinGecko coin id.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	id, ok := symbolToID[symbol]
	if !ok {
		id = strings.ToLower(symbol)
	}
	if days <= 0 {
		days = 30
	}
	if !c.limiter.Allow("ohlc", 5, 0.5) {
		return nil, fmt.Errorf("coingecko: local rate limit exceeded")
	}

	// Rows come back as [timestamp_ms, open, high, low, close].
	var rows [][]float64
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"days":        strconv.Itoa(days),
		}).
		SetResult(&rows).
		Get("/coins/" + id + "/ohlc")
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("coingecko status %d", resp.StatusCode())
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(int64(row[0])).UTC(),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		})
	}
	return candles, nil
}
