package events

import (
	"context"
	"testing"
	"time"

	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelEventBus_DropsWhenFull(t *testing.T) {
	bus := NewChannelEventBus(1, logger.NewDiscardLogger())
	bus.Emit(events.Event{Type: events.StoreCreated})
	bus.Emit(events.Event{Type: events.ActionDispatched}) // dropped, must not block
	bus.Close()

	var got []events.EventType
	for ev := range bus.GetChannel() {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []events.EventType{events.StoreCreated}, got)
}

func TestChannelEventBus_RequiresLogger(t *testing.T) {
	assert.Panics(t, func() { NewChannelEventBus(1, nil) })
}

func TestNoOpEventBus(t *testing.T) {
	assert.NotPanics(t, func() { NewNoOpEventBus().Emit(events.Event{Type: events.StoreCreated}) })
}

func TestMetricsEventListener_CountsEvents(t *testing.T) {
	bus := NewChannelEventBus(10, logger.NewDiscardLogger())
	reg := prometheus.NewRegistry()
	l := NewMetricsEventListener(bus, reg, logger.NewDiscardLogger())
	again := NewMetricsEventListener(bus, reg, logger.NewDiscardLogger())
	assert.Same(t, l.total, again.total, "collectors are shared per registry")

	bus.Emit(events.Event{Type: events.ActionDispatched, StoreName: "shop"})
	bus.Emit(events.Event{Type: events.ActionDispatched, StoreName: "shop"})
	bus.Emit(events.Event{Type: events.SnapshotSaved, StoreName: "shop", Payload: map[string]interface{}{"driver": "memory"}})
	bus.Emit(events.Event{Type: events.SnapshotFailed, StoreName: "shop", Payload: map[string]interface{}{"driver": "postgres"}})
	bus.Close()

	done := make(chan struct{})
	go func() {
		l.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after the bus closed")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(l.total.WithLabelValues(string(events.ActionDispatched))))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.snapshots.WithLabelValues("shop", "memory", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.snapshots.WithLabelValues("shop", "postgres", "failed")))
}

func TestMetricsEventListener_StopsOnContext(t *testing.T) {
	bus := NewChannelEventBus(1, logger.NewDiscardLogger())
	l := NewMetricsEventListener(bus, prometheus.NewRegistry(), logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener ignored context cancellation")
	}
	require.NotNil(t, l)
}
