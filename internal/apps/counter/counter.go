// Package counter is a small demonstration application: an integer counter
// combined with a bounded history of the actions applied to it.
package counter

import (
	"encoding/json"
	"fmt"

	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/registry"
	"github.com/gxo-labs/reducto/internal/session"
	"github.com/gxo-labs/reducto/internal/store"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

const (
	AppName = "counter"

	KindInc = "INC"
	KindDec = "DEC"
	KindAdd = "ADD"

	// HistoryLimit bounds the history slice; older entries are dropped.
	HistoryLimit = 100

	keyCount   = "count"
	keyHistory = "history"
)

// Action is the closed set of counter actions.
type Action interface {
	reducto.Action
	counterAction()
}

type Inc struct{}

type Dec struct{}

type Add struct {
	By int `json:"by"`
}

func (Inc) Kind() string { return KindInc }
func (Dec) Kind() string { return KindDec }
func (Add) Kind() string { return KindAdd }

func (Inc) counterAction() {}
func (Dec) counterAction() {}
func (Add) counterAction() {}

// Count is the reducer of the "count" slice.
func Count(state int, action reducto.Action) int {
	switch a := action.(type) {
	case Inc:
		return state + 1
	case Dec:
		return state - 1
	case Add:
		return state + a.By
	}
	return state
}

// History records the kind of every counter action, newest last.
func History(state []string, action reducto.Action) []string {
	if reducto.IsInitAction(action) && state == nil {
		return []string{}
	}
	if _, ok := action.(Action); !ok {
		return state
	}
	start := 0
	if len(state) >= HistoryLimit {
		start = len(state) - HistoryLimit + 1
	}
	next := make([]string, 0, len(state)-start+1)
	next = append(next, state[start:]...)
	return append(next, action.Kind())
}

// Reducer combines Count and History under the "count" and "history" keys.
func Reducer() (reducto.Reducer[map[string]any], error) {
	return store.CombineReducers(map[string]reducto.Reducer[any]{
		keyCount:   store.Slice(Count),
		keyHistory: store.Slice(History),
	}, store.CombineWithLogger(logger.NewDefaultLogger("warn").With("app", AppName)))
}

// Decode turns an external (kind, payload) pair into a counter action.
func Decode(kind string, payload json.RawMessage) (reducto.Action, error) {
	switch kind {
	case KindInc:
		return Inc{}, nil
	case KindDec:
		return Dec{}, nil
	case KindAdd:
		return session.DecodePayload[Add](AppName, kind, payload)
	}
	return nil, reductoerrors.NewUnknownActionError(AppName, kind)
}

type snapshot struct {
	Count   int      `json:"count"`
	History []string `json:"history"`
}

// Restore decodes a snapshot into typed slices. Plain encoding/json would
// hand the count back as a float64, which the Count slice does not accept.
func Restore(data []byte) (map[string]any, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode counter snapshot: %w", err)
	}
	if s.History == nil {
		s.History = []string{}
	}
	return map[string]any{keyCount: s.Count, keyHistory: s.History}, nil
}

// Open opens a counter session.
func Open(opts session.Options) (session.Session, error) {
	reducer, err := Reducer()
	if err != nil {
		return nil, err
	}
	s, err := session.Open(session.Definition[map[string]any]{
		App:     AppName,
		Reducer: reducer,
		Decode:  Decode,
		Restore: Restore,
	}, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func init() {
	registry.Register(AppName, Open)
}
