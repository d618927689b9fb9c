package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the pool's hit, miss, eviction, and flush counters.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Flushes   prometheus.Counter
}

// NewMetrics constructs the pool counters.
func NewMetrics() *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rexdb_buffer_hits_total",
			Help: "Fetches served from a resident frame.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rexdb_buffer_misses_total",
			Help: "Fetches that had to read the page from disk.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rexdb_buffer_evictions_total",
			Help: "Frames reclaimed through the replacer.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rexdb_buffer_flushes_total",
			Help: "Pages written back to disk.",
		}),
	}
}

// Register registers every counter with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Evictions, m.Flushes} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// hit increments the hit counter if metrics are wired.
func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) eviction() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) flush() {
	if m != nil {
		m.Flushes.Inc()
	}
}
