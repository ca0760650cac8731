// Package session puts a typed Store behind a type-erased handle so that
// transports (CLI, HTTP, NATS) can drive any registered application with
// JSON actions.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gxo-labs/reducto/internal/store"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// Session is an application store seen from the outside.
type Session interface {
	// Name is the store name.
	Name() string
	// App is the registry name of the application.
	App() string
	// Dispatch decodes (kind, payload) into an application action and
	// dispatches it. Unknown kinds yield an UnknownActionError, malformed
	// payloads a ValidationError.
	Dispatch(ctx context.Context, kind string, payload json.RawMessage) error
	// State returns the current state.
	State() any
	// Snapshot returns the current state encoded as JSON.
	Snapshot() ([]byte, error)
	// Subscribe registers a listener on the underlying store.
	Subscribe(listener reducto.Listener) (reducto.Unsubscribe, error)
	// ListenerCount returns the number of registered listeners.
	ListenerCount() int
}

// Decoder maps an external action onto the application's closed action set.
type Decoder func(kind string, payload json.RawMessage) (reducto.Action, error)

// Options configure a session.
type Options struct {
	// Name of the store; the application name when empty.
	Name string
	// Snapshot, when non-nil, is a JSON state the store starts from instead
	// of dispatching the initialization action.
	Snapshot []byte
	// StoreOptions are passed through to the store.
	StoreOptions []reducto.StoreOption
}

// Definition describes an application: its reducer and how external actions
// and snapshots are decoded.
type Definition[S any] struct {
	App     string
	Reducer reducto.Reducer[S]
	Decode  Decoder
	// Restore decodes a snapshot. Nil uses encoding/json into S.
	Restore func(snapshot []byte) (S, error)
}

// Typed is the Session implementation over a Store[S].
type Typed[S any] struct {
	app    string
	store  *store.Store[S]
	decode Decoder
}

var _ Session = (*Typed[any])(nil)

// Open builds the store for def. With a snapshot the state is restored and
// no initialization action runs.
func Open[S any](def Definition[S], opts Options) (*Typed[S], error) {
	if def.App == "" {
		return nil, reductoerrors.NewConfigError("application name cannot be empty", nil)
	}
	if def.Decode == nil {
		return nil, reductoerrors.NewConfigError(fmt.Sprintf("application '%s' has no action decoder", def.App), nil)
	}
	name := opts.Name
	if name == "" {
		name = def.App
	}
	storeOpts := append([]reducto.StoreOption{reducto.WithName(name)}, opts.StoreOptions...)

	var (
		s   *store.Store[S]
		err error
	)
	if opts.Snapshot != nil {
		restore := def.Restore
		if restore == nil {
			restore = unmarshal[S]
		}
		state, rerr := restore(opts.Snapshot)
		if rerr != nil {
			return nil, reductoerrors.NewPersistenceError("restore", name, rerr)
		}
		s, err = store.NewWithState(def.Reducer, state, storeOpts...)
	} else {
		s, err = store.New(def.Reducer, storeOpts...)
	}
	if err != nil {
		return nil, err
	}
	return &Typed[S]{app: def.App, store: s, decode: def.Decode}, nil
}

func unmarshal[S any](snapshot []byte) (S, error) {
	var state S
	err := json.Unmarshal(snapshot, &state)
	return state, err
}

func (t *Typed[S]) Name() string { return t.store.Name() }
func (t *Typed[S]) App() string  { return t.app }

// Store exposes the typed store for in-process callers.
func (t *Typed[S]) Store() *store.Store[S] { return t.store }

func (t *Typed[S]) Dispatch(ctx context.Context, kind string, payload json.RawMessage) error {
	if kind == "" {
		return reductoerrors.NewInvalidActionError("action kind cannot be empty")
	}
	action, err := t.decode(kind, payload)
	if err != nil {
		return err
	}
	_, err = t.store.DispatchContext(ctx, action)
	return err
}

func (t *Typed[S]) State() any { return t.store.GetState() }

// TypedState returns the current state without boxing it.
func (t *Typed[S]) TypedState() S { return t.store.GetState() }

func (t *Typed[S]) Snapshot() ([]byte, error) {
	return json.Marshal(t.store.GetState())
}

func (t *Typed[S]) Subscribe(listener reducto.Listener) (reducto.Unsubscribe, error) {
	return t.store.Subscribe(listener)
}

func (t *Typed[S]) ListenerCount() int { return t.store.ListenerCount() }

// DecodePayload unmarshals payload into T for action decoders. An empty
// payload leaves T at its zero value.
func DecodePayload[T any](app, kind string, payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, reductoerrors.NewValidationError(fmt.Sprintf("app '%s': invalid payload for '%s'", app, kind), err)
	}
	return v, nil
}
