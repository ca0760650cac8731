// Package store implements the reducto Store: a single mutable cell of
// application state that changes only through Dispatch.
package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	intEvents "github.com/gxo-labs/reducto/internal/events"
	"github.com/gxo-labs/reducto/internal/logger"
	intMetrics "github.com/gxo-labs/reducto/internal/metrics"
	intTracing "github.com/gxo-labs/reducto/internal/tracing"
	"github.com/gxo-labs/reducto/internal/util"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/metrics"
	reductotracing "github.com/gxo-labs/reducto/pkg/reducto/v1/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName   = "reducto-store"
	defaultName  = "default"
	spanDispatch = "reducto.dispatch"
	spanReplace  = "reducto.replace_reducer"
)

// phase is what the goroutine owning the dispatch lock is doing.
type phase int32

const (
	phaseIdle phase = iota
	phaseReducing
	phaseNotifying
)

func (p phase) String() string {
	switch p {
	case phaseReducing:
		return "reducing"
	case phaseNotifying:
		return "notifying"
	default:
		return "idle"
	}
}

type subscription struct {
	fn reducto.Listener
}

// Store holds the current state of type S and the reducer that computes the
// next one. All methods are safe for concurrent use.
//
// Dispatches from different goroutines are serialized. A dispatch issued by
// the goroutine that is currently inside a reducer or a listener of the same
// Store is rejected with a ReentrantDispatchError instead of deadlocking.
type Store[S any] struct {
	id         string
	name       string
	log        reductolog.Logger
	eventBus   events.Bus
	metrics    metrics.RegistryProvider
	tracing    reductotracing.TracerProvider
	tracer     oteltrace.Tracer
	accessMode reducto.StateAccessMode
	collectors *storeCollectors
	initAction reducto.Action

	// state is replaced wholesale after each reducer call; readers never lock.
	state atomic.Pointer[S]

	dispatchMu sync.Mutex
	reducer    reducto.Reducer[S] // guarded by dispatchMu
	owner      atomic.Int64       // goroutine holding dispatchMu, 0 if none
	phase      atomic.Int32

	// listeners is copy-on-write: a published slice is never modified, so a
	// dispatch can iterate a snapshot while listeners come and go.
	subMu     sync.Mutex
	listeners []*subscription
}

var _ reducto.StoreV1[any] = (*Store[any])(nil)

// New creates a Store and dispatches the initialization action against the
// zero value of S, so the reducer supplies the initial state.
func New[S any](reducer reducto.Reducer[S], opts ...reducto.StoreOption) (*Store[S], error) {
	s, err := newStore(reducer, opts)
	if err != nil {
		return nil, err
	}
	var zero S
	s.state.Store(&zero)
	s.created(false)

	if _, err := s.dispatch(context.Background(), s.initAction); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithState creates a Store whose current state is preloaded. No
// initialization action is dispatched.
func NewWithState[S any](reducer reducto.Reducer[S], preloaded S, opts ...reducto.StoreOption) (*Store[S], error) {
	s, err := newStore(reducer, opts)
	if err != nil {
		return nil, err
	}
	s.state.Store(&preloaded)
	s.created(true)
	return s, nil
}

func newStore[S any](reducer reducto.Reducer[S], opts []reducto.StoreOption) (*Store[S], error) {
	if reducer == nil {
		return nil, reductoerrors.NewInvalidReducerError("reducer cannot be nil", nil)
	}

	s := &Store[S]{
		id:         uuid.NewString(),
		name:       defaultName,
		reducer:    reducer,
		accessMode: reducto.StateAccessShared,
		initAction: newInitAction(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, reductoerrors.NewConfigError("failed to apply store option", err)
		}
	}

	if s.log == nil {
		s.log = logger.NewDefaultLogger("warn")
	}
	s.log = s.log.With("store", s.name, "store_id", s.id)
	if s.eventBus == nil {
		s.eventBus = intEvents.NewNoOpEventBus()
	}
	if s.metrics == nil {
		s.log.Debugf("No metrics provider provided, using a private Prometheus registry.")
		s.metrics = intMetrics.NewPrometheusRegistryProvider()
	}
	if s.tracing == nil {
		tp, err := intTracing.NewNoOpProvider()
		if err != nil {
			return nil, reductoerrors.NewConfigError("failed to create default NoOp tracer provider", err)
		}
		s.tracing = tp
	}
	s.tracer = s.tracing.GetTracer(tracerName)
	s.collectors = newStoreCollectors(s.metrics.Registry(), s.log)
	s.collectors.listeners.WithLabelValues(s.name).Set(0)
	return s, nil
}

func (s *Store[S]) created(preloaded bool) {
	s.log.Debugf("Store created (access mode: %s, preloaded: %t)", s.accessMode, preloaded)
	s.emit(events.StoreCreated, "", map[string]interface{}{
		"store_id":    s.id,
		"preloaded":   preloaded,
		"access_mode": string(s.accessMode),
	})
}

// Name returns the store name.
func (s *Store[S]) Name() string { return s.name }

// ID returns the random id assigned to this store instance.
func (s *Store[S]) ID() string { return s.id }

// Dispatch applies action. See DispatchContext.
func (s *Store[S]) Dispatch(action reducto.Action) (reducto.Action, error) {
	return s.DispatchContext(context.Background(), action)
}

// DispatchContext runs the reducer on the current state and action,
// publishes the result as the new state, then calls every listener that was
// registered when the reducer returned. It returns action unchanged.
//
// ctx only carries trace and log correlation; a dispatch is never cancelled
// halfway. A panic raised by the reducer or a listener propagates to the
// caller after the store has released its lock. A reducer panic leaves the
// state unchanged.
func (s *Store[S]) DispatchContext(ctx context.Context, action reducto.Action) (reducto.Action, error) {
	if err := validateAction(action); err != nil {
		s.reject(ctx, action, outcomeInvalid, err)
		return nil, err
	}
	return s.dispatch(ctx, action)
}

func (s *Store[S]) dispatch(ctx context.Context, action reducto.Action) (reducto.Action, error) {
	release, err := s.acquire(ctx, action)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := s.tracer.Start(ctx, spanDispatch, oteltrace.WithAttributes(
		intTracing.AttrStore.String(s.name),
		intTracing.AttrActionKind.String(metricKind(action)),
	))
	defer span.End()

	s.run(ctx, span, action)
	return action, nil
}

// acquire takes the dispatch lock for the calling goroutine, or fails if
// that goroutine already holds it. The returned func releases the lock.
func (s *Store[S]) acquire(ctx context.Context, action reducto.Action) (func(), error) {
	gid := goroutineID()
	if s.owner.Load() == gid {
		err := reductoerrors.NewReentrantDispatchError(s.name, action.Kind(), phase(s.phase.Load()).String())
		s.reject(ctx, action, outcomeReentrant, err)
		return nil, err
	}

	s.dispatchMu.Lock()
	s.owner.Store(gid)
	return func() {
		s.phase.Store(int32(phaseIdle))
		s.owner.Store(0)
		s.dispatchMu.Unlock()
	}, nil
}

// run performs one reduce-and-notify round. The caller holds dispatchMu.
func (s *Store[S]) run(ctx context.Context, span oteltrace.Span, action reducto.Action) {
	kind := metricKind(action)
	start := time.Now()
	completed := false
	defer func() {
		if !completed {
			s.collectors.dispatches.WithLabelValues(s.name, kind, outcomePanic).Inc()
			span.SetAttributes(intTracing.AttrOutcome.String(outcomePanic))
			span.SetStatus(codes.Error, "panic during dispatch")
			s.log.Errorf("Dispatch of '%s' panicked, lock released", action.Kind())
		}
	}()

	s.phase.Store(int32(phaseReducing))
	next := s.reducer(*s.state.Load(), action)
	s.state.Store(&next)

	s.phase.Store(int32(phaseNotifying))
	s.subMu.Lock()
	snapshot := s.listeners
	s.subMu.Unlock()
	for _, sub := range snapshot {
		sub.fn()
	}
	completed = true

	elapsed := time.Since(start)
	s.collectors.dispatches.WithLabelValues(s.name, kind, outcomeOK).Inc()
	s.collectors.duration.WithLabelValues(s.name).Observe(elapsed.Seconds())
	span.SetAttributes(
		intTracing.AttrListeners.Int(len(snapshot)),
		intTracing.AttrOutcome.String(outcomeOK),
	)
	span.SetStatus(codes.Ok, "")

	s.emit(events.ActionDispatched, action.Kind(), map[string]interface{}{
		"listeners":   len(snapshot),
		"duration_ms": elapsed.Milliseconds(),
	})
	if s.log.IsEnabled(slog.LevelDebug) {
		s.log.LogCtx(ctx, slog.LevelDebug, "Action dispatched",
			"action_kind", action.Kind(), "listeners", len(snapshot), "duration", elapsed)
	}
}

func (s *Store[S]) reject(ctx context.Context, action reducto.Action, outcome string, err error) {
	kind := kindOf(action)
	s.collectors.dispatches.WithLabelValues(s.name, metricKind(action), outcome).Inc()

	_, span := s.tracer.Start(ctx, spanDispatch, oteltrace.WithAttributes(
		intTracing.AttrStore.String(s.name),
		intTracing.AttrActionKind.String(kind),
		intTracing.AttrOutcome.String(outcome),
	))
	intTracing.RecordErrorWithContext(span, err, nil)
	span.End()

	s.emit(events.DispatchRejected, kind, map[string]interface{}{
		"reason": outcome,
		"error":  err.Error(),
	})
	s.log.Warnf("Dispatch rejected: %v", err)
}

// GetState returns the current state without locking. In deep_copy access
// mode the caller receives a private copy.
func (s *Store[S]) GetState() S {
	current := *s.state.Load()
	if s.accessMode == reducto.StateAccessDeepCopy {
		return util.CloneState(current)
	}
	return current
}

// Subscribe registers listener. It may be called at any time, including from
// inside a listener; a listener added during a notification round is first
// called on the next dispatch. The same function may be registered several
// times, each registration is notified separately.
func (s *Store[S]) Subscribe(listener reducto.Listener) (reducto.Unsubscribe, error) {
	if listener == nil {
		return nil, reductoerrors.NewInvalidListenerError()
	}
	sub := &subscription{fn: listener}

	s.subMu.Lock()
	n := len(s.listeners)
	s.listeners = append(s.listeners[:n:n], sub)
	count := len(s.listeners)
	s.subMu.Unlock()

	s.collectors.listeners.WithLabelValues(s.name).Set(float64(count))
	s.emit(events.ListenerAdded, "", map[string]interface{}{"listeners": count})

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}, nil
}

// unsubscribe removes sub. A round already in progress still calls it.
func (s *Store[S]) unsubscribe(sub *subscription) {
	s.subMu.Lock()
	next := make([]*subscription, 0, len(s.listeners))
	for _, existing := range s.listeners {
		if existing != sub {
			next = append(next, existing)
		}
	}
	s.listeners = next
	count := len(next)
	s.subMu.Unlock()

	s.collectors.listeners.WithLabelValues(s.name).Set(float64(count))
	s.emit(events.ListenerRemoved, "", map[string]interface{}{"listeners": count})
}

// ListenerCount returns the number of current registrations.
func (s *Store[S]) ListenerCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.listeners)
}

// ReplaceReducer installs next and dispatches the initialization action so
// the new reducer can populate state it owns. The swap and the dispatch
// happen under one lock acquisition: no other dispatch can observe the new
// reducer before the initialization action has run.
func (s *Store[S]) ReplaceReducer(next reducto.Reducer[S]) error {
	if next == nil {
		return reductoerrors.NewInvalidReducerError("replacement reducer cannot be nil", nil)
	}
	ctx := context.Background()
	release, err := s.acquire(ctx, s.initAction)
	if err != nil {
		return err
	}
	defer release()

	ctx, span := s.tracer.Start(ctx, spanReplace, oteltrace.WithAttributes(
		intTracing.AttrStore.String(s.name),
		intTracing.AttrActionKind.String(reducto.InitActionPrefix),
		attribute.Bool("reducto.reducer.replaced", true),
	))
	defer span.End()

	// A reducer that panics on the initialization action never publishes
	// state, so the previous reducer is put back.
	prev, before := s.reducer, s.state.Load()
	s.reducer = next
	defer func() {
		if s.state.Load() == before {
			s.reducer = prev
			s.log.Warnf("Replacement reducer panicked on initialization, previous reducer restored")
		}
	}()
	s.collectors.replacements.WithLabelValues(s.name).Inc()
	s.log.Infof("Reducer replaced, dispatching initialization action.")
	s.emit(events.ReducerReplaced, s.initAction.Kind(), nil)

	s.run(ctx, span, s.initAction)
	return nil
}

func (s *Store[S]) emit(t events.EventType, kind string, payload map[string]interface{}) {
	s.eventBus.Emit(events.Event{
		Type:       t,
		Timestamp:  time.Now(),
		StoreName:  s.name,
		ActionKind: kind,
		Payload:    payload,
	})
}

// --- Configurable ---

// SetName sets the store name. Only meaningful before construction ends.
func (s *Store[S]) SetName(name string) error {
	if name == "" {
		return reductoerrors.NewConfigError("store name cannot be empty", nil)
	}
	s.name = name
	return nil
}

// SetLogger replaces the store logger.
func (s *Store[S]) SetLogger(log reductolog.Logger) error {
	if log == nil {
		return reductoerrors.NewConfigError("logger cannot be nil", nil)
	}
	s.log = log
	return nil
}

// SetEventBus sets the bus that receives store lifecycle events.
func (s *Store[S]) SetEventBus(bus events.Bus) error {
	if bus == nil {
		return reductoerrors.NewConfigError("event bus cannot be nil", nil)
	}
	s.eventBus = bus
	return nil
}

// SetMetricsRegistryProvider sets where the store registers its collectors.
func (s *Store[S]) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	if provider == nil {
		return reductoerrors.NewConfigError("metrics registry provider cannot be nil", nil)
	}
	s.metrics = provider
	return nil
}

// SetTracerProvider sets the provider used for dispatch spans.
func (s *Store[S]) SetTracerProvider(provider reductotracing.TracerProvider) error {
	if provider == nil {
		return reductoerrors.NewConfigError("tracer provider cannot be nil", nil)
	}
	s.tracing = provider
	return nil
}

// SetStateAccessMode selects whether GetState shares or deep copies the state.
func (s *Store[S]) SetStateAccessMode(mode reducto.StateAccessMode) error {
	switch mode {
	case reducto.StateAccessShared, reducto.StateAccessDeepCopy:
		s.accessMode = mode
		return nil
	default:
		return reductoerrors.NewConfigError("invalid state access mode '"+string(mode)+"'", nil)
	}
}

var _ reducto.Configurable = (*Store[any])(nil)
