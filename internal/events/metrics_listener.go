package events

import (
	"context"
	"errors"

	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsEventListener drains a ChannelEventBus and turns lifecycle events
// into Prometheus counters.
type MetricsEventListener struct {
	bus       *ChannelEventBus
	log       reductolog.Logger
	total     *prometheus.CounterVec
	snapshots *prometheus.CounterVec
}

// NewMetricsEventListener creates a listener and registers its collectors on
// reg. Collectors already registered by another listener are reused.
func NewMetricsEventListener(bus *ChannelEventBus, reg *prometheus.Registry, log reductolog.Logger) *MetricsEventListener {
	if bus == nil || reg == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, Prometheus Registry, and Logger")
	}
	l := &MetricsEventListener{
		bus: bus,
		log: log.With("component", "MetricsEventListener"),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reducto_events_total", Help: "Total number of store lifecycle events by type."},
			[]string{"type"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reducto_snapshots_saved_total", Help: "Total number of state snapshot writes by outcome."},
			[]string{"store", "driver", "outcome"},
		),
	}
	l.total = register(reg, l.total, l.log)
	l.snapshots = register(reg, l.snapshots, l.log)
	return l
}

func register(reg *prometheus.Registry, c *prometheus.CounterVec, log reductolog.Logger) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				log.Debugf("Event metric collector already registered, reusing it.")
				return existing
			}
		}
		log.Warnf("Failed to register event metric collector: %v", err)
	}
	return c
}

// Start consumes events until the bus is closed or ctx is done. It blocks;
// run it in its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

func (l *MetricsEventListener) handleEvent(event events.Event) {
	l.total.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case events.SnapshotSaved, events.SnapshotFailed:
		driver, _ := event.Payload["driver"].(string)
		outcome := "ok"
		if event.Type == events.SnapshotFailed {
			outcome = "failed"
		}
		l.snapshots.WithLabelValues(event.StoreName, driver, outcome).Inc()
	}
}
