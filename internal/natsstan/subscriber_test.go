package natsstan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/reducto/internal/apps/counter"
	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
)

func TestHandler_Handle(t *testing.T) {
	sess, err := counter.Open(session.Options{StoreOptions: []reducto.StoreOption{reducto.WithLogger(logger.NewDiscardLogger())}})
	require.NoError(t, err)
	h := NewHandler(sess, logger.NewDiscardLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		data string
		ack  bool
	}{
		{"inc", `{"kind":"INC"}`, true},
		{"add", `{"kind":"ADD","payload":{"by":9}}`, true},
		{"malformed json is dropped", `not json`, true},
		{"unknown kind is dropped", `{"kind":"MUL"}`, true},
		{"empty kind is dropped", `{}`, true},
		{"bad payload is dropped", `{"kind":"ADD","payload":{"by":[]}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ack, h.Handle(ctx, []byte(tt.data)))
		})
	}
	assert.Equal(t, 10, sess.State().(map[string]any)["count"])
}

func TestHandler_ReentrantDispatchIsRedelivered(t *testing.T) {
	sess, err := counter.Open(session.Options{StoreOptions: []reducto.StoreOption{reducto.WithLogger(logger.NewDiscardLogger())}})
	require.NoError(t, err)
	h := NewHandler(sess, logger.NewDiscardLogger())

	var acked *bool
	first := true
	_, err = sess.Subscribe(func() {
		if first {
			first = false
			ack := h.Handle(context.Background(), []byte(`{"kind":"INC"}`))
			acked = &ack
		}
	})
	require.NoError(t, err)

	require.NoError(t, sess.Dispatch(context.Background(), counter.KindInc, nil))
	require.NotNil(t, acked)
	assert.False(t, *acked)
	assert.Equal(t, 1, sess.State().(map[string]any)["count"])
}

func TestHandler_PanicLeavesMessageUnacked(t *testing.T) {
	sess, err := counter.Open(session.Options{StoreOptions: []reducto.StoreOption{reducto.WithLogger(logger.NewDiscardLogger())}})
	require.NoError(t, err)
	h := NewHandler(sess, logger.NewDiscardLogger())

	fail := true
	_, err = sess.Subscribe(func() {
		if fail {
			fail = false
			panic("listener")
		}
	})
	require.NoError(t, err)

	var ack bool
	require.NotPanics(t, func() { ack = h.Handle(context.Background(), []byte(`{"kind":"INC"}`)) })
	assert.False(t, ack)

	assert.True(t, h.Handle(context.Background(), []byte(`{"kind":"INC"}`)), "handler keeps working after a panic")
	assert.Equal(t, 2, sess.State().(map[string]any)["count"])
}
