package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records collection cycle outcomes.
type Metrics struct {
	appended          *prometheus.CounterVec
	counterResets     prometheus.Counter
	transportFailures prometheus.Counter
	unresolved        prometheus.Counter
	storeFailures     prometheus.Counter
	cycleDuration     prometheus.Histogram
}

// New creates the collector metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecount_readings_appended_total",
			Help: "Readings appended to a series, by reconciliation outcome.",
		}, []string{"outcome"}),
		counterResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagecount_counter_resets_total",
			Help: "Readings whose counter went backwards and were recorded with a zero delta.",
		}),
		transportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagecount_transport_failures_total",
			Help: "Device reads (counter or serial) that failed or timed out; no reading was appended.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagecount_unresolved_sources_total",
			Help: "Sources skipped because their address could not be resolved.",
		}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagecount_store_failures_total",
			Help: "Series store operations that failed during a cycle.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagecount_cycle_duration_seconds",
			Help:    "Wall time of one collection cycle over the fleet.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.appended, m.counterResets, m.transportFailures, m.unresolved, m.storeFailures, m.cycleDuration)
	return m
}

func (m *Metrics) IncAppended(outcome string) {
	m.appended.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCounterReset() {
	m.counterResets.Inc()
}

func (m *Metrics) IncTransportFailure() {
	m.transportFailures.Inc()
}

func (m *Metrics) IncUnresolved() {
	m.unresolved.Inc()
}

func (m *Metrics) IncStoreFailure() {
	m.storeFailures.Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}
