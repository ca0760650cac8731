package store

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

type combineConfig struct {
	log reductolog.Logger
}

// CombineOption configures CombineReducers.
type CombineOption func(*combineConfig)

// CombineWithLogger makes the combined reducer warn, once per key, about
// state keys that no slice reducer owns. Those keys are dropped.
func CombineWithLogger(log reductolog.Logger) CombineOption {
	return func(c *combineConfig) {
		c.log = log
	}
}

// CombineReducers builds a reducer over map[string]any that hands each key
// to its own slice reducer. The result is the input map itself when no
// slice changed, so identity checks on the root state keep working.
//
// Every slice reducer is called twice up front: with the initialization
// action and with a random unknown action, both on a nil slice. A reducer
// that answers either with nil is rejected.
func CombineReducers(reducers map[string]reducto.Reducer[any], opts ...CombineOption) (reducto.Reducer[map[string]any], error) {
	if len(reducers) == 0 {
		return nil, reductoerrors.NewInvalidReducerError("no slice reducers to combine", nil)
	}
	cfg := &combineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	keys := make([]string, 0, len(reducers))
	owned := make(map[string]reducto.Reducer[any], len(reducers))
	for key, r := range reducers {
		if r == nil {
			return nil, reductoerrors.NewInvalidReducerError(fmt.Sprintf("slice reducer for key '%s' is nil", key), nil)
		}
		if err := probe(key, r); err != nil {
			return nil, err
		}
		keys = append(keys, key)
		owned[key] = r
	}
	sort.Strings(keys)

	var warned sync.Map
	return func(state map[string]any, action reducto.Action) map[string]any {
		changed := false
		next := make(map[string]any, len(keys))
		for _, key := range keys {
			prev, had := state[key]
			val := owned[key](prev, action)
			next[key] = val
			if !had || !sameValue(prev, val) {
				changed = true
			}
		}
		if !changed && len(state) == len(keys) {
			return state
		}
		if cfg.log != nil && len(state) > 0 {
			for key := range state {
				if _, ok := owned[key]; ok {
					continue
				}
				if _, seen := warned.LoadOrStore(key, struct{}{}); !seen {
					cfg.log.Warnf("State key '%s' has no slice reducer and is dropped. Expected one of %v.", key, keys)
				}
			}
		}
		return next
	}, nil
}

func probe(key string, r reducto.Reducer[any]) error {
	if isNilResult(r(nil, newInitAction())) {
		return reductoerrors.NewInvalidReducerError(
			fmt.Sprintf("slice reducer for key '%s' returned nil during initialization; return an initial state instead", key), nil)
	}
	if isNilResult(r(nil, newProbeAction())) {
		return reductoerrors.NewInvalidReducerError(
			fmt.Sprintf("slice reducer for key '%s' returned nil for an unknown action; return the current state instead", key), nil)
	}
	return nil
}

// isNilResult reports an untyped nil or a nil pointer. Nil maps and slices
// are valid empty states.
func isNilResult(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// sameValue is identity, not deep equality: reference kinds compare by
// pointer (and length for slices), everything else with ==.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Ptr, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return false
}

// Slice adapts a typed reducer to a slice of a combined state. A missing
// slice reaches the reducer as the zero value of S.
func Slice[S any](reducer reducto.Reducer[S]) reducto.Reducer[any] {
	return func(state any, action reducto.Action) any {
		typed, _ := state.(S)
		return reducer(typed, action)
	}
}
