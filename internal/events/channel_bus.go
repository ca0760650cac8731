package events

import (
	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

// ChannelEventBus implements events.Bus on top of a buffered channel. Emit
// never blocks: when the buffer is full the event is dropped with a warning,
// so a slow consumer can never stall a dispatch.
type ChannelEventBus struct {
	channel chan events.Event
	log     reductolog.Logger
}

// NewChannelEventBus creates a ChannelEventBus. A non-positive bufferSize
// selects the default of 100. Panics if log is nil.
func NewChannelEventBus(bufferSize int, log reductolog.Logger) *ChannelEventBus {
	const defaultBufferSize = 100
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}

	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit enqueues event without blocking.
func (c *ChannelEventBus) Emit(event events.Event) {
	select {
	case c.channel <- event:
		c.log.Debugf("Emitted event type '%s' for store '%s'", event.Type, event.StoreName)
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s' for store '%s'", event.Type, event.StoreName)
	}
}

// GetChannel returns the read side of the bus for in-process consumers such
// as MetricsEventListener or the HTTP event stream.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Close closes the channel. No Emit may follow.
func (c *ChannelEventBus) Close() {
	c.log.Debugf("Closing ChannelEventBus channel.")
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
