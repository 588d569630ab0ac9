package querycache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache activity. A nil *Metrics records nothing.
type Metrics struct {
	Hits         prometheus.Counter
	Misses       prometheus.Counter
	Deduplicated prometheus.Counter
	Discarded    prometheus.Counter
	Invalidated  prometheus.Counter
}

// NewMetrics creates the cache counters and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notehub",
			Subsystem: "querycache",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Hits:         counter("hits_total", "Reads served from an existing entry"),
		Misses:       counter("misses_total", "Reads that created a new entry"),
		Deduplicated: counter("deduplicated_total", "Reads that joined an in-flight fetch"),
		Discarded:    counter("discarded_total", "Fetch completions dropped as stale"),
		Invalidated:  counter("invalidated_total", "Entries matched by an invalidation"),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Deduplicated, m.Discarded, m.Invalidated)
	}
	return m
}

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

func (m *Metrics) dedup() {
	if m != nil {
		m.Deduplicated.Inc()
	}
}

func (m *Metrics) discard() {
	if m != nil {
		m.Discarded.Inc()
	}
}

func (m *Metrics) invalidate() {
	if m != nil {
		m.Invalidated.Inc()
	}
}
