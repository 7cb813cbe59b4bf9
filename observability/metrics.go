package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ProtocolMetrics groups the collectors recording CDP lifecycle activity and
// oracle behaviour.
type ProtocolMetrics struct {
	Operations    *prometheus.CounterVec
	Liquidations  prometheus.Counter
	OracleUpdates *prometheus.CounterVec
	PriceCents    prometheus.Gauge
	Latency       *prometheus.HistogramVec
}

var (
	protocolMetricsOnce sync.Once
	protocolRegistry    *ProtocolMetrics
)

// Metrics returns the lazily-initialised protocol metrics registry.
func Metrics() *ProtocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolRegistry = &ProtocolMetrics{
			Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bollar",
				Subsystem: "cdp",
				Name:      "operations_total",
				Help:      "Total CDP operations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			Liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "bollar",
				Subsystem: "cdp",
				Name:      "liquidations_total",
				Help:      "Total positions forcibly liquidated.",
			}),
			OracleUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bollar",
				Subsystem: "oracle",
				Name:      "updates_total",
				Help:      "Total oracle price updates segmented by outcome.",
			}, []string{"outcome"}),
			PriceCents: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bollar",
				Subsystem: "oracle",
				Name:      "price_cents",
				Help:      "Last accepted BTC/USD price in cents.",
			}),
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bollar",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			protocolRegistry.Operations,
			protocolRegistry.Liquidations,
			protocolRegistry.OracleUpdates,
			protocolRegistry.PriceCents,
			protocolRegistry.Latency,
		)
	})
	return protocolRegistry
}
