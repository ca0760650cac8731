package events

import "time"

// EventType represents the type of a store lifecycle event.
type EventType string

// Store lifecycle event types.
const (
	StoreCreated     EventType = "StoreCreated"
	ActionDispatched EventType = "ActionDispatched" // Reducer ran and listeners were notified
	DispatchRejected EventType = "DispatchRejected" // Invalid or reentrant dispatch
	ReducerReplaced  EventType = "ReducerReplaced"
	ListenerAdded    EventType = "ListenerAdded"
	ListenerRemoved  EventType = "ListenerRemoved"
	SnapshotSaved    EventType = "SnapshotSaved"  // Persister wrote a state snapshot
	SnapshotFailed   EventType = "SnapshotFailed" // Persister gave up on a snapshot
)

// Event represents a significant occurrence in a Store or one of its decorators.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// StoreName identifies the store the event belongs to.
	StoreName string `json:"store_name,omitempty"`
	// ActionKind is the kind of the action involved, if any.
	ActionKind string `json:"action_kind,omitempty"`
	// Payload carries event-specific data. State values are never included;
	// they can be large and are not ours to publish.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus is the sink stores emit lifecycle events to. Emit is called while the
// store holds its dispatch lock, so implementations must not block.
type Bus interface {
	Emit(event Event)
}
