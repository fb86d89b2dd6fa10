// Package metrics exposes the Prometheus instruments shared across the
// matching and backtest paths. Collectors register on the default
// registry; serve them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exchange",
		Subsystem: "matching",
		Name:      "orders_submitted_total",
		Help:      "Orders accepted into the pipeline, by instrument and side.",
	}, []string{"instrument", "side"})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exchange",
		Subsystem: "matching",
		Name:      "orders_rejected_total",
		Help:      "Orders rejected by the pipeline, by instrument and reason.",
	}, []string{"instrument", "reason"})

	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exchange",
		Subsystem: "matching",
		Name:      "fills_total",
		Help:      "Fills produced, by instrument.",
	}, []string{"instrument"})

	FillQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exchange",
		Subsystem: "matching",
		Name:      "fill_quantity_total",
		Help:      "Total matched quantity in lot units, by instrument.",
	}, []string{"instrument"})

	SubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exchange",
		Subsystem: "matching",
		Name:      "submit_latency_seconds",
		Help:      "Wall time of one order submission through the pipeline.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exchange",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because the publication buffer was full.",
	})
)
