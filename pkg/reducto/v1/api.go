package v1

import (
	"context"
	"strings"

	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/log"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/metrics"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/tracing"
)

// Action is a discriminated request to transition state. The Store reads
// nothing but Kind; an empty Kind is rejected as malformed.
//
// Applications should model their actions as a closed set: a sealed
// interface embedding Action plus one struct per kind, so that reducers can
// switch on the concrete type.
type Action interface {
	Kind() string
}

// Reducer is a pure state transition. It must return its input unchanged for
// kinds it does not handle, and a usable default when given the zero value
// together with the initialization action.
type Reducer[S any] func(state S, action Action) S

// Listener is called after every successful dispatch. It takes no arguments;
// it reads the new state through GetState.
type Listener func()

// Unsubscribe removes the registration that returned it. Calling it more than
// once is a no-op.
type Unsubscribe func()

// StoreV1 is the public surface of a reducto Store.
type StoreV1[S any] interface {
	// Dispatch applies action through the reducer, publishes the result and
	// notifies listeners. It returns the dispatched action.
	Dispatch(action Action) (Action, error)
	// DispatchContext is Dispatch with a context used for tracing and log
	// correlation. The dispatch itself cannot be cancelled.
	DispatchContext(ctx context.Context, action Action) (Action, error)
	// Subscribe registers listener and returns its unsubscribe handle.
	Subscribe(listener Listener) (Unsubscribe, error)
	// GetState returns the current state. It never blocks.
	GetState() S
	// ReplaceReducer swaps the reducer and dispatches the initialization action.
	ReplaceReducer(next Reducer[S]) error
}

// InitActionPrefix is the kind prefix of the reserved initialization action.
// Each Store appends a random suffix so no application can dispatch it.
const InitActionPrefix = "@@reducto/INIT"

// IsInitAction reports whether action is a Store's initialization action.
func IsInitAction(action Action) bool {
	return action != nil && strings.HasPrefix(action.Kind(), InitActionPrefix)
}

// StateAccessMode defines how GetState hands out the current state.
type StateAccessMode string

const (
	// StateAccessShared (default) returns the published state as is. Callers
	// must treat it as immutable.
	StateAccessShared StateAccessMode = "shared"

	// StateAccessDeepCopy returns a deep copy of the published state on every
	// read, so a careless caller cannot corrupt history. Costs an allocation
	// per read proportional to the state size.
	StateAccessDeepCopy StateAccessMode = "deep_copy"
)

// Configurable is implemented by stores accepting StoreOptions.
type Configurable interface {
	SetName(name string) error
	SetLogger(logger log.Logger) error
	SetEventBus(bus events.Bus) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetTracerProvider(provider tracing.TracerProvider) error
	SetStateAccessMode(mode StateAccessMode) error
}

// StoreOption configures a Store at creation.
type StoreOption func(Configurable) error

// WithName sets the store name used in logs, metrics labels and events.
func WithName(name string) StoreOption {
	return func(c Configurable) error {
		if name == "" {
			return reductoerrors.NewConfigError("store name cannot be empty", nil)
		}
		return c.SetName(name)
	}
}

// WithLogger provides the logger used by the store.
func WithLogger(logger log.Logger) StoreOption {
	return func(c Configurable) error {
		if logger == nil {
			return reductoerrors.NewConfigError("logger cannot be nil", nil)
		}
		return c.SetLogger(logger)
	}
}

// WithEventBus provides the sink for lifecycle events.
func WithEventBus(bus events.Bus) StoreOption {
	return func(c Configurable) error {
		if bus == nil {
			return reductoerrors.NewConfigError("event bus cannot be nil", nil)
		}
		return c.SetEventBus(bus)
	}
}

// WithMetricsRegistryProvider provides the Prometheus registry for store metrics.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) StoreOption {
	return func(c Configurable) error {
		if provider == nil {
			return reductoerrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return c.SetMetricsRegistryProvider(provider)
	}
}

// WithTracerProvider provides the tracer provider for dispatch spans.
func WithTracerProvider(provider tracing.TracerProvider) StoreOption {
	return func(c Configurable) error {
		if provider == nil {
			return reductoerrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		return c.SetTracerProvider(provider)
	}
}

// WithStateAccessMode selects shared or deep-copied state reads.
func WithStateAccessMode(mode StateAccessMode) StoreOption {
	return func(c Configurable) error {
		if mode != StateAccessShared && mode != StateAccessDeepCopy {
			return reductoerrors.NewConfigError("invalid state access mode '"+string(mode)+"'", nil)
		}
		return c.SetStateAccessMode(mode)
	}
}
