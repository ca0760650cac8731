package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/reducto/internal/apps/counter"
	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/metrics"
	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

func newTestServer(t *testing.T) (*Server, session.Session) {
	t.Helper()
	provider := metrics.NewPrometheusRegistryProvider()
	sess, err := counter.Open(session.Options{StoreOptions: []reducto.StoreOption{
		reducto.WithLogger(logger.NewDiscardLogger()),
		reducto.WithMetricsRegistryProvider(provider),
	}})
	require.NoError(t, err)
	return NewServer(sess, provider.Handler(), logger.NewDiscardLogger()), sess
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestActions(t *testing.T) {
	srv, sess := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"inc", `{"kind":"INC"}`, http.StatusAccepted},
		{"add", `{"kind":"ADD","payload":{"by":4}}`, http.StatusAccepted},
		{"malformed body", `{"kind":`, http.StatusBadRequest},
		{"empty kind", `{"kind":""}`, http.StatusBadRequest},
		{"bad payload", `{"kind":"ADD","payload":{"by":"four"}}`, http.StatusBadRequest},
		{"unknown kind", `{"kind":"MUL"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/actions", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	state := sess.State().(map[string]any)
	assert.Equal(t, 5, state["count"])

	rec := do(t, h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":5,"history":["INC","ADD"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/actions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(reductoerrors.NewReentrantDispatchError("s", "INC", "reducing")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"counter"}`, rec.Body.String())

	do(t, h, http.MethodPost, "/api/actions", `{"kind":"INC"}`)
	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reducto_dispatch_total{kind="INC",outcome="ok",store="counter"} 1`)
}

func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return data
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream(t *testing.T) {
	srv, sess := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"count":0,"history":[]}`, readFrame(t, r))

	require.Eventually(t, func() bool { return sess.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sess.Dispatch(ctx, counter.KindInc, nil))

	var v struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFrame(t, r)), &v))
	assert.Equal(t, 1, v.Count)

	cancel()
	assert.Eventually(t, func() bool { return sess.ListenerCount() == 0 }, 2*time.Second, 10*time.Millisecond,
		"stream handler unsubscribes when the client goes away")
}

func TestStart_ServesUntilCancelled(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx, "127.0.0.1:0"))

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := http.Get("http://" + srv.Addr().String() + "/healthz")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
