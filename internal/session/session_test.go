package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tally struct {
	Total int      `json:"total"`
	Notes []string `json:"notes"`
}

type addAction struct {
	N int `json:"n"`
}

func (addAction) Kind() string { return "ADD" }

func tallyReducer(state tally, action reducto.Action) tally {
	if reducto.IsInitAction(action) && state.Notes == nil {
		return tally{Notes: []string{}}
	}
	if a, ok := action.(addAction); ok {
		return tally{Total: state.Total + a.N, Notes: append(append([]string{}, state.Notes...), "add")}
	}
	return state
}

func decodeTally(kind string, payload json.RawMessage) (reducto.Action, error) {
	if kind == "ADD" {
		return session.DecodePayload[addAction]("tally", kind, payload)
	}
	return nil, reductoerrors.NewUnknownActionError("tally", kind)
}

func def() session.Definition[tally] {
	return session.Definition[tally]{App: "tally", Reducer: tallyReducer, Decode: decodeTally}
}

func opts() session.Options {
	return session.Options{StoreOptions: []reducto.StoreOption{reducto.WithLogger(logger.NewDiscardLogger())}}
}

func TestOpen_Validation(t *testing.T) {
	var cfgErr *reductoerrors.ConfigError
	_, err := session.Open(session.Definition[tally]{Reducer: tallyReducer, Decode: decodeTally}, opts())
	assert.ErrorAs(t, err, &cfgErr)
	_, err = session.Open(session.Definition[tally]{App: "tally", Reducer: tallyReducer}, opts())
	assert.ErrorAs(t, err, &cfgErr)

	var reducerErr *reductoerrors.InvalidReducerError
	_, err = session.Open(session.Definition[tally]{App: "tally", Decode: decodeTally}, opts())
	assert.ErrorAs(t, err, &reducerErr)
}

func TestSession_DispatchAndSnapshot(t *testing.T) {
	s, err := session.Open(def(), opts())
	require.NoError(t, err)
	assert.Equal(t, "tally", s.Name())
	assert.Equal(t, "tally", s.App())

	notified := 0
	unsub, err := s.Subscribe(func() { notified++ })
	require.NoError(t, err)
	assert.Equal(t, 1, s.ListenerCount())

	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, "ADD", json.RawMessage(`{"n":2}`)))
	require.NoError(t, s.Dispatch(ctx, "ADD", nil))
	assert.Equal(t, 2, notified)
	assert.Equal(t, tally{Total: 2, Notes: []string{"add", "add"}}, s.TypedState())

	var invalidAction *reductoerrors.InvalidActionError
	assert.ErrorAs(t, s.Dispatch(ctx, "", nil), &invalidAction)
	var unknown *reductoerrors.UnknownActionError
	assert.ErrorAs(t, s.Dispatch(ctx, "SUB", nil), &unknown)
	var invalid *reductoerrors.ValidationError
	assert.ErrorAs(t, s.Dispatch(ctx, "ADD", json.RawMessage(`[`)), &invalid)
	assert.Equal(t, 2, notified, "failed dispatches notify nobody")

	unsub()
	assert.Equal(t, 0, s.ListenerCount())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2,"notes":["add","add"]}`, string(snap))
}

func TestOpen_FromSnapshotSkipsInit(t *testing.T) {
	o := opts()
	o.Name = "restored"
	o.Snapshot = []byte(`{"total":7}`)
	s, err := session.Open(def(), o)
	require.NoError(t, err)
	assert.Equal(t, "restored", s.Name())
	assert.Equal(t, tally{Total: 7}, s.State(), "no initialization action ran over the snapshot")
}

func TestOpen_RestoreFailure(t *testing.T) {
	d := def()
	d.Restore = func([]byte) (tally, error) { return tally{}, errors.New("corrupt") }
	o := opts()
	o.Snapshot = []byte(`{}`)
	_, err := session.Open(d, o)
	var perr *reductoerrors.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "restore", perr.Op)
}

func TestDecodePayload(t *testing.T) {
	v, err := session.DecodePayload[addAction]("tally", "ADD", json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, addAction{}, v)

	v, err = session.DecodePayload[addAction]("tally", "ADD", json.RawMessage(`{"n":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, v.N)
}
