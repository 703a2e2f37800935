package models

import "time"

// PriceQuote is one asset's view inside a price snapshot.
type PriceQuote struct {
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceSnapshot maps asset symbol to its quote. A snapshot is immutable once
// emitted by the feed; every agent sees the same snapshot for a given tick.
type PriceSnapshot map[string]PriceQuote

// PriceOf returns the quoted price for symbol, or 0 when unpriced.
func (s PriceSnapshot) PriceOf(symbol string) float64 {
	return s[symbol].Price
}

// Has reports whether symbol carries a usable price in this snapshot.
func (s PriceSnapshot) Has(symbol string) bool {
	q, ok := s[symbol]
	return ok && q.Price > 0
}

// Candle is one OHLC bar of historical market data.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// ReplaySnapshot is one entry of a replay file: a recorded snapshot plus the
// moment it was originally captured.
type ReplaySnapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Prices    PriceSnapshot `json:"prices"`
}
