// Package httpapi exposes a session over HTTP: state reads, action dispatch,
// a Server-Sent Events stream of state changes and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/gxo-labs/reducto/internal/session"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

const (
	// sseWriteTimeout bounds a single SSE frame write so a stalled client
	// cannot pin its handler goroutine.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
	maxActionBytes  = 1 << 20
)

// ActionRequest is the body of POST /api/actions.
type ActionRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type actionResponse struct {
	Kind string `json:"kind"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves one session.
//
//   - GET  /api/state    current state as JSON
//   - POST /api/actions  dispatch {kind, payload}
//   - GET  /api/stream   SSE: the current state, then one frame per dispatch
//   - GET  /metrics      Prometheus exposition, when a handler is given
//   - GET  /healthz      liveness
type Server struct {
	sess   session.Session
	router *mux.Router
	log    reductolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer builds the router. metrics may be nil.
func NewServer(sess session.Session, metrics http.Handler, log reductolog.Logger) *Server {
	s := &Server{
		sess:   sess,
		router: mux.NewRouter(),
		log:    log.With("component", "httpapi"),
	}
	s.router.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/api/actions", s.handleAction).Methods(http.MethodPost)
	s.router.HandleFunc("/api/stream", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves in the background until ctx is done,
// then shuts down gracefully. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("HTTP server shutdown: %v", err)
		}
	}()
	s.log.Infof("HTTP API listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": s.sess.Name()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.sess.Snapshot()
	if err != nil {
		s.log.Errorf("Failed to encode state: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "state cannot be encoded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(snap)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := s.sess.Dispatch(r.Context(), req.Kind, req.Payload); err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Errorf("Dispatch of '%s' failed: %v", req.Kind, err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, actionResponse{Kind: req.Kind})
}

func statusFor(err error) int {
	var (
		invalidAction *reductoerrors.InvalidActionError
		validation    *reductoerrors.ValidationError
		reentrant     *reductoerrors.ReentrantDispatchError
		unknown       *reductoerrors.UnknownActionError
	)
	switch {
	case errors.As(err, &invalidAction), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &reentrant):
		return http.StatusConflict
	case errors.As(err, &unknown):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleStream sends the state on connect and after every dispatch. The
// store listener only signals; frames are built here, so a slow client
// skips intermediate states instead of delaying dispatches.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	rc := http.NewResponseController(w)
	deadlines := true
	send := func() error {
		data, err := s.sess.Snapshot()
		if err != nil {
			return err
		}
		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				deadlines = false
			}
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	changed := make(chan struct{}, 1)
	unsub, err := s.sess.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-changed:
			if err := send(); err != nil {
				s.log.Debugf("SSE client dropped: %v", err)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
