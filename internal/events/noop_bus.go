package events

import "github.com/gxo-labs/reducto/pkg/reducto/v1/events"

// NoOpEventBus discards every event. Stores fall back to it when no bus is
// configured.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new instance of the NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit does nothing.
func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
