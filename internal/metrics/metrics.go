// Package metrics holds the small set of Prometheus collectors the PDP
// core exposes, scoped down from _examples/dep2p-go-dep2p's much larger
// internal/core/metrics module to only what this subsystem can observe
// about itself: pool occupancy, announcements sent and leases expired.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is one PDP core's collectors. Each participant's PDPStore owns one
// Set registered under its own prometheus.Registerer, so two participants
// in the same process do not collide on metric names.
type Set struct {
	PoolInUse       *prometheus.GaugeVec
	PoolExhausted   *prometheus.CounterVec
	Announcements   prometheus.Counter
	LeasesExpired   prometheus.Counter
	ParticipantsKnown prometheus.Gauge
}

// NewSet constructs and registers a fresh Set. reg may be nil, in which
// case the collectors are created but never registered (useful in tests
// that do not care about scraping).
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		PoolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pdp",
			Name:      "pool_in_use",
			Help:      "Number of proxy objects currently checked out of the process-wide pool, by kind.",
		}, []string{"kind"}),
		PoolExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdp",
			Name:      "pool_exhausted_total",
			Help:      "Number of times a pool acquisition failed because max_proxies was reached, by kind.",
		}, []string{"kind"}),
		Announcements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdp",
			Name:      "announcements_sent_total",
			Help:      "Number of ALIVE/DISPOSE announcements submitted to the builtin writer.",
		}),
		LeasesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdp",
			Name:      "leases_expired_total",
			Help:      "Number of remote participants dropped due to lease expiry.",
		}),
		ParticipantsKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdp",
			Name:      "participants_known",
			Help:      "Number of participants currently held in the PDPStore, including the local one.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.PoolInUse, s.PoolExhausted, s.Announcements, s.LeasesExpired, s.ParticipantsKnown)
	}
	return s
}

// NewUnregisteredSet is a convenience constructor for tests.
func NewUnregisteredSet() *Set { return NewSet(nil) }
