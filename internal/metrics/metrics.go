// Package metrics exposes Prometheus counters for the ingestion and
// sync paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inkshelf"

// Metrics bundles every collector the service registers. Handlers
// receive it by reference; nothing here is package-global state.
type Metrics struct {
	IngestTotal  *prometheus.CounterVec // source, outcome: populated | empty | unreachable
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	SyncAccepted prometheus.Counter
	SyncRejected *prometheus.CounterVec // reason: unauthorized | invalid_format
	PushClients  *prometheus.GaugeVec   // transport: tcp | ws
}

// New registers all collectors with reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Ingestion passes by source and outcome.",
		}, []string{"source", "outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Display responses served from the result cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Display responses that required recomputation.",
		}),
		SyncAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_accepted_total",
			Help:      "Sync pushes that replaced the collection.",
		}),
		SyncRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_rejected_total",
			Help:      "Sync pushes rejected before any state change.",
		}, []string{"reason"}),
		PushClients: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_clients",
			Help:      "Connected push-hub clients by transport.",
		}, []string{"transport"}),
	}
}

// RecordIngest classifies one ingestion pass.
func (m *Metrics) RecordIngest(source, outcome string) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(source, outcome).Inc()
}
