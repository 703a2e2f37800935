package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal    *prometheus.CounterVec
	cyclesTotal   *prometheus.CounterVec
	tradesTotal   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	equity        *prometheus.GaugeVec
	oracleLatency prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantomex_ticks_total",
				Help: "Total number of price snapshots emitted by the feed",
			},
			[]string{"source"},
		),
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantomex_decision_cycles_total",
				Help: "Total number of decision cycles run per agent",
			},
			[]string{"agent"},
		),
		tradesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantomex_trades_total",
				Help: "Total number of trade log entries by side",
			},
			[]string{"side"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantomex_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phantomex_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		equity: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phantomex_agent_equity",
				Help: "Last recorded total portfolio value per agent",
			},
			[]string{"agent"},
		),
		oracleLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phantomex_oracle_duration_seconds",
				Help:    "Duration of oracle calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
}

// RecordTick records one emitted price snapshot.
func (r *Recorder) RecordTick(source string) {
	r.ticksTotal.WithLabelValues(source).Inc()
}

// RecordCycle records one decision cycle for an agent.
func (r *Recorder) RecordCycle(agentID string) {
	r.cyclesTotal.WithLabelValues(agentID).Inc()
}

// RecordTrade records a trade log entry by side.
func (r *Recorder) RecordTrade(side string) {
	r.tradesTotal.WithLabelValues(side).Inc()
}

// RecordOracleLatency records one oracle call duration in seconds.
func (r *Recorder) RecordOracleLatency(seconds float64) {
	r.oracleLatency.Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordEquity records the last total portfolio value for an agent.
func (r *Recorder) RecordEquity(agentID string, value float64) {
	r.equity.WithLabelValues(agentID).Set(value)
}
