// Package natsstan feeds actions published on a NATS Streaming subject into
// a session.
package natsstan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/gxo-labs/reducto/internal/config"
	"github.com/gxo-labs/reducto/internal/session"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

const (
	defaultQueue   = "reducto-workers"
	defaultDurable = "reducto-durable"
	ackWait        = 10 * time.Second
	handleTimeout  = 5 * time.Second
)

// Message is the wire format of a remote action.
type Message struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler dispatches raw messages into a session.
type Handler struct {
	sess session.Session
	log  reductolog.Logger
}

func NewHandler(sess session.Session, log reductolog.Logger) *Handler {
	return &Handler{sess: sess, log: log.With("component", "natsstan")}
}

// Handle decodes and dispatches one message and reports whether it should be
// acknowledged. Messages that can never succeed (malformed JSON, unknown
// kinds, invalid payloads) are acknowledged and dropped; anything else is
// left unacknowledged for redelivery.
func (h *Handler) Handle(ctx context.Context, data []byte) (ack bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("Dispatch panicked, leaving message for redelivery: %v", r)
			ack = false
		}
	}()
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Warnf("Dropping malformed message: %v", err)
		return true
	}
	err := h.sess.Dispatch(ctx, msg.Kind, msg.Payload)
	if err == nil {
		return true
	}
	if permanent(err) {
		h.log.Warnf("Dropping action '%s': %v", msg.Kind, err)
		return true
	}
	h.log.Errorf("Dispatch of '%s' failed, leaving it for redelivery: %v", msg.Kind, err)
	return false
}

func permanent(err error) bool {
	var (
		invalidAction *reductoerrors.InvalidActionError
		validation    *reductoerrors.ValidationError
		unknown       *reductoerrors.UnknownActionError
	)
	return errors.As(err, &invalidAction) || errors.As(err, &validation) || errors.As(err, &unknown)
}

// Subscriber is a durable queue subscription with manual acks.
type Subscriber struct {
	cfg     config.NATSConfig
	handler *Handler
	log     reductolog.Logger
}

func NewSubscriber(cfg config.NATSConfig, handler *Handler, log reductolog.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, handler: handler, log: log.With("component", "natsstan", "subject", cfg.Subject)}
}

// Run connects, subscribes and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	clientID := s.cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("reducto-%d", time.Now().UnixNano())
	}
	queue := s.cfg.Queue
	if queue == "" {
		queue = defaultQueue
	}
	durable := s.cfg.Durable
	if durable == "" {
		durable = defaultDurable
	}

	sc, err := stan.Connect(s.cfg.ClusterID, clientID, stan.NatsURL(s.cfg.GetURL()),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			s.log.Errorf("NATS Streaming connection lost: %v", reason)
		}))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS Streaming cluster '%s': %w", s.cfg.ClusterID, err)
	}
	defer sc.Close()

	sub, err := sc.QueueSubscribe(s.cfg.Subject, queue, func(m *stan.Msg) {
		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		if !s.handler.Handle(hctx, m.Data) {
			return
		}
		if err := m.Ack(); err != nil {
			s.log.Warnf("Ack of message %d failed: %v", m.Sequence, err)
		}
	}, stan.DurableName(durable), stan.SetManualAckMode(), stan.AckWait(ackWait), stan.DeliverAllAvailable())
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.cfg.Subject, err)
	}
	s.log.Infof("Consuming actions from '%s' (queue %s, durable %s)", s.cfg.Subject, queue, durable)

	<-ctx.Done()
	// Close, not Unsubscribe: the durable position must survive restarts.
	if err := sub.Close(); err != nil {
		s.log.Warnf("Closing subscription: %v", err)
	}
	return nil
}
