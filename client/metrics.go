package client

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "sendly"

// Metrics collects executor and read cache counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts    *prometheus.CounterVec
	rotations   prometheus.Counter
	exhausted   prometheus.Counter
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "attempts_total",
			Help:      "RPC attempts by endpoint index and outcome.",
		}, []string{"endpoint", "outcome"}),
		rotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "rotations_total",
			Help:      "Switches to the next RPC endpoint.",
		}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "exhausted_total",
			Help:      "Operations that failed on every RPC endpoint.",
		}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Read cache hits by key kind.",
		}, []string{"kind"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Read cache misses by key kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) attempt(endpoint int, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(strconv.Itoa(endpoint), outcome).Inc()
}

func (m *Metrics) rotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

func (m *Metrics) exhaustion() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}

// CacheHit records a read served from cache.
func (m *Metrics) CacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

// CacheMiss records a read that went to the network.
func (m *Metrics) CacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}
