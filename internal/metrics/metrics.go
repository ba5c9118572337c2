// Package metrics exposes Prometheus collectors for the trader.
//
//   - divergence_feed_messages_total{feed}        inbound messages that updated prices
//   - divergence_feed_dropped_total{feed}         malformed or irrelevant messages
//   - divergence_feed_connects_total{feed,result} dial attempts (ok|error)
//   - divergence_price{feed,side}                 latest price per feed/side
//   - divergence_opportunities_total{side,action} detector hits
//   - divergence_gate_blocked_total{reason}       ticks suppressed by the gate
//   - divergence_executions_total{result}         execution attempts by outcome
//   - divergence_orders_total{leg,side,result}    orders submitted per bracket leg
//   - divergence_settlement_balance               last observed settlement balance
//   - divergence_trades_recorded                  trades in the ledger
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_feed_messages_total", Help: "Feed messages that produced a price update"},
		[]string{"feed"},
	)
	FeedDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_feed_dropped_total", Help: "Feed messages dropped as malformed or irrelevant"},
		[]string{"feed"},
	)
	FeedConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_feed_connects_total", Help: "Feed dial attempts"},
		[]string{"feed", "result"},
	)
	Price = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "divergence_price", Help: "Latest price per feed and side"},
		[]string{"feed", "side"},
	)
	Opportunities = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_opportunities_total", Help: "Detected divergences"},
		[]string{"side", "action"},
	)
	GateBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_gate_blocked_total", Help: "Decision ticks suppressed by the execution gate"},
		[]string{"reason"},
	)
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_executions_total", Help: "Execution attempts by result"},
		[]string{"result"},
	)
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_orders_total", Help: "Orders submitted by leg"},
		[]string{"leg", "side", "result"},
	)
	SettlementBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "divergence_settlement_balance", Help: "Last observed settlement currency balance"},
	)
	TradesRecorded = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "divergence_trades_recorded", Help: "Trades recorded in the in-memory ledger"},
	)
)

func init() {
	prometheus.MustRegister(
		FeedMessages,
		FeedDropped,
		FeedConnects,
		Price,
		Opportunities,
		GateBlocked,
		Executions,
		Orders,
		SettlementBalance,
		TradesRecorded,
	)
}

// Serve starts the /metrics endpoint in the background. An empty addr disables it.
func Serve(addr string, errs func(error)) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && errs != nil {
			errs(err)
		}
	}()
	return srv
}
