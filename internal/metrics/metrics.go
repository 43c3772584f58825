// Package metrics exposes the Prometheus instruments of the trading pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quotes_total", Help: "Raw quotes received from the feed"},
		[]string{"token"},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Normalized ticks processed"},
		[]string{"symbol"},
	)
	TicksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_dropped_total", Help: "Quotes dropped by the normalizer"},
		[]string{"reason"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Strategy decisions emitted"},
		[]string{"symbol", "side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OrderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_failures_total", Help: "Orders rejected or failed"},
		[]string{"symbol", "side"},
	)
	FeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Streaming feed reconnect attempts"},
	)
	OrderUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_updates_total", Help: "Order status pushes received"},
		[]string{"status"},
	)
	RealizedGainPct = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "realized_gain_pct", Help: "Cumulative realized gain percentage"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		QuotesTotal,
		TicksTotal,
		TicksDropped,
		DecisionsTotal,
		OrdersTotal,
		OrderFailures,
		FeedReconnects,
		OrderUpdates,
		RealizedGainPct,
	)
}

// Serve exposes /metrics on addr in the background. An empty addr disables the listener.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
