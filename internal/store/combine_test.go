package store_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/store"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(state []string, action reducto.Action) []string {
	if reducto.IsInitAction(action) {
		if state == nil {
			return []string{}
		}
		return state
	}
	switch action.Kind() {
	case "INC", "DEC", "ADD":
		next := make([]string, len(state), len(state)+1)
		copy(next, state)
		return append(next, action.Kind())
	default:
		return state
	}
}

func combined(t *testing.T, opts ...store.CombineOption) reducto.Reducer[map[string]any] {
	t.Helper()
	r, err := store.CombineReducers(map[string]reducto.Reducer[any]{
		"count":   store.Slice(counter),
		"history": store.Slice(history),
	}, opts...)
	require.NoError(t, err)
	return r
}

func TestCombineReducers_RoutesSlices(t *testing.T) {
	s, err := store.New(combined(t), quietOpts()...)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 0, "history": []string{}}, s.GetState())

	_, err = s.Dispatch(inc)
	require.NoError(t, err)
	_, err = s.Dispatch(counterAction{kind: "ADD", by: 4})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 5, "history": []string{"INC", "ADD"}}, s.GetState())
}

func TestCombineReducers_UnchangedReturnsSameMap(t *testing.T) {
	r := combined(t)
	state := r(nil, counterAction{kind: "WHATEVER"})
	require.Len(t, state, 2)

	same := r(state, counterAction{kind: "WHATEVER"})
	assert.Equal(t, reflectPointer(state), reflectPointer(same), "no slice changed, same map back")

	changed := r(state, inc)
	assert.NotEqual(t, reflectPointer(state), reflectPointer(changed))
	assert.Equal(t, 0, state["count"], "input map is never mutated")
	assert.Equal(t, 1, changed["count"])
}

func TestCombineReducers_DropsUnknownKeysWithWarning(t *testing.T) {
	var buf bytes.Buffer
	r := combined(t, store.CombineWithLogger(logger.NewLogger("warn", "text", &buf)))

	base := r(nil, inc)
	base["legacy"] = true

	next := r(base, counterAction{kind: "NOOP"})
	assert.NotContains(t, next, "legacy")
	_ = r(next, counterAction{kind: "NOOP"})
	_ = r(base, counterAction{kind: "NOOP"})

	assert.Equal(t, 1, strings.Count(buf.String(), "'legacy'"), "warned once per key: %s", buf.String())
}

func TestCombineReducers_Validation(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := store.CombineReducers(nil)
		var target *reductoerrors.InvalidReducerError
		assert.ErrorAs(t, err, &target)
	})

	t.Run("nil slice reducer", func(t *testing.T) {
		_, err := store.CombineReducers(map[string]reducto.Reducer[any]{"a": nil})
		assert.ErrorContains(t, err, "'a'")
	})

	t.Run("nil on init", func(t *testing.T) {
		_, err := store.CombineReducers(map[string]reducto.Reducer[any]{
			"lazy": func(state any, action reducto.Action) any { return state },
		})
		assert.ErrorContains(t, err, "during initialization")
	})

	t.Run("nil on unknown action", func(t *testing.T) {
		_, err := store.CombineReducers(map[string]reducto.Reducer[any]{
			"greedy": func(state any, action reducto.Action) any {
				if reducto.IsInitAction(action) {
					return 0
				}
				return nil
			},
		})
		assert.ErrorContains(t, err, "unknown action")
	})

	t.Run("nil pointer on init", func(t *testing.T) {
		type slice struct{ N int }
		_, err := store.CombineReducers(map[string]reducto.Reducer[any]{
			"ptr": store.Slice(func(state *slice, action reducto.Action) *slice { return state }),
		})
		var target *reductoerrors.InvalidReducerError
		assert.ErrorAs(t, err, &target)
	})
}

func reflectPointer(m map[string]any) uintptr {
	return reflect.ValueOf(m).Pointer()
}
