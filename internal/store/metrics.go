package store

import (
	"errors"

	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeInvalid   = "invalid"
	outcomeReentrant = "reentrant"
	outcomePanic     = "panic"
)

// storeCollectors holds the Prometheus collectors of a store. Stores sharing
// a registry share the collectors and are told apart by the "store" label.
type storeCollectors struct {
	dispatches   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	listeners    *prometheus.GaugeVec
	replacements *prometheus.CounterVec
}

func newStoreCollectors(reg *prometheus.Registry, log reductolog.Logger) *storeCollectors {
	c := &storeCollectors{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reducto_dispatch_total", Help: "Total number of dispatch attempts by action kind and outcome."},
			[]string{"store", "kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "reducto_dispatch_duration_seconds", Help: "Time spent in the reducer and the notification round.", Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10)},
			[]string{"store"},
		),
		listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "reducto_listeners", Help: "Number of currently registered listeners."},
			[]string{"store"},
		),
		replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reducto_reducer_replacements_total", Help: "Total number of reducer replacements."},
			[]string{"store"},
		),
	}
	if reg == nil {
		log.Warnf("Metrics provider returned a nil registry, store metrics are not exported.")
		return c
	}
	c.dispatches = registerOrReuse(reg, c.dispatches, log)
	c.duration = registerOrReuse(reg, c.duration, log)
	c.listeners = registerOrReuse(reg, c.listeners, log)
	c.replacements = registerOrReuse(reg, c.replacements, log)
	return c
}

// registerOrReuse registers collector, or returns the collector already
// registered under the same descriptor.
func registerOrReuse[C prometheus.Collector](reg *prometheus.Registry, collector C, log reductolog.Logger) C {
	err := reg.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	log.Warnf("Failed to register store metric collector: %v", err)
	return collector
}
