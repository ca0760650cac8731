package persist

import (
	"context"
	"sync"
	"time"

	intEvents "github.com/gxo-labs/reducto/internal/events"
	"github.com/gxo-labs/reducto/internal/retry"
	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/gxo-labs/reducto/pkg/reducto/v1/events"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

// PersisterOptions configure a Persister.
type PersisterOptions struct {
	// Driver labels events and metrics, e.g. "postgres".
	Driver   string
	Retry    retry.Config
	EventBus events.Bus
	Logger   reductolog.Logger
}

// Persister writes a session's state to a Repository after dispatches. Its
// store listener only marks the state dirty; a worker goroutine takes the
// snapshot and saves it, so a slow repository never delays a dispatch.
// Snapshots taken while the worker is busy are coalesced: only the latest
// state is written.
type Persister struct {
	sess   session.Session
	repo   Repository
	driver string
	retry  retry.Config
	helper *retry.Helper
	bus    events.Bus
	log    reductolog.Logger

	dirty  chan struct{}
	saveMu sync.Mutex

	mu     sync.Mutex
	unsub  reducto.Unsubscribe
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPersister(sess session.Session, repo Repository, opts PersisterOptions) *Persister {
	log := opts.Logger
	if log == nil {
		panic("persist.NewPersister requires a non-nil logger")
	}
	bus := opts.EventBus
	if bus == nil {
		bus = intEvents.NewNoOpEventBus()
	}
	driver := opts.Driver
	if driver == "" {
		driver = "unknown"
	}
	log = log.With("component", "Persister", "store", sess.Name(), "driver", driver)
	return &Persister{
		sess:   sess,
		repo:   repo,
		driver: driver,
		retry:  opts.Retry,
		helper: retry.NewHelper(log),
		bus:    bus,
		log:    log,
		dirty:  make(chan struct{}, 1),
	}
}

// Start subscribes to the session and runs the save worker until ctx is
// done or Stop is called.
func (p *Persister) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return reductoerrors.NewConfigError("persister already started", nil)
	}
	unsub, err := p.sess.Subscribe(p.markDirty)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	p.unsub = unsub
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	p.log.Debugf("Persister started")
	return nil
}

func (p *Persister) markDirty() {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (p *Persister) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.dirty:
			_ = p.save(ctx)
		}
	}
}

// Flush saves the current state now. Errors are returned after retries are
// exhausted.
func (p *Persister) Flush(ctx context.Context) error {
	return p.save(ctx)
}

// Stop unsubscribes, waits for the worker and flushes the final state with
// ctx. Stop on a persister that was never started only flushes.
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	unsub, cancel, done := p.unsub, p.cancel, p.done
	p.unsub, p.cancel = nil, nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	return p.Flush(ctx)
}

func (p *Persister) save(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	start := time.Now()
	snap, err := p.sess.Snapshot()
	if err != nil {
		err = reductoerrors.NewPersistenceError("snapshot", p.sess.Name(), err)
		p.emit(events.SnapshotFailed, map[string]interface{}{"error": err.Error()})
		p.log.Errorf("Failed to encode snapshot: %v", err)
		return err
	}

	cfg := p.retry
	cfg.Label = "snapshot save store=" + p.sess.Name()
	err = p.helper.Do(ctx, cfg, func(ctx context.Context) error {
		return p.repo.Save(ctx, p.sess.Name(), snap)
	})
	if err != nil {
		p.emit(events.SnapshotFailed, map[string]interface{}{"error": err.Error()})
		return err
	}
	p.emit(events.SnapshotSaved, map[string]interface{}{
		"bytes":       len(snap),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	p.log.Debugf("Snapshot saved (%d bytes)", len(snap))
	return nil
}

func (p *Persister) emit(t events.EventType, payload map[string]interface{}) {
	payload["driver"] = p.driver
	p.bus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		StoreName: p.sess.Name(),
		Payload:   payload,
	})
}
