// Package persist saves application state snapshots outside the process and
// restores them on startup.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gxo-labs/reducto/internal/config"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

// ErrNoSnapshot is returned by Load when nothing was saved for a store yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Repository stores the latest JSON snapshot per store name.
type Repository interface {
	Save(ctx context.Context, store string, snapshot []byte) error
	// Load returns ErrNoSnapshot (possibly wrapped) for unknown stores.
	Load(ctx context.Context, store string) ([]byte, error)
}

// MemoryRepository keeps snapshots in process memory. It is meant for tests
// and for the replay command, where a snapshot only needs to outlive one
// session.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snapshots: make(map[string][]byte)}
}

func (r *MemoryRepository) Save(_ context.Context, store string, snapshot []byte) error {
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	r.mu.Lock()
	r.snapshots[store] = cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Load(_ context.Context, store string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[store]
	if !ok {
		return nil, reductoerrors.NewPersistenceError("load", store, ErrNoSnapshot)
	}
	cp := make([]byte, len(snap))
	copy(cp, snap)
	return cp, nil
}

var _ Repository = (*MemoryRepository)(nil)

// LoadLatest returns the stored snapshot of store, or nil when there is none.
func LoadLatest(ctx context.Context, repo Repository, store string) ([]byte, error) {
	snap, err := repo.Load(ctx, store)
	if errors.Is(err, ErrNoSnapshot) {
		return nil, nil
	}
	return snap, err
}

// Open builds the repository selected by cfg. The returned close function is
// never nil. DriverNone yields a nil Repository.
func Open(ctx context.Context, cfg *config.PersistenceConfig, log reductolog.Logger) (Repository, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, nil
	}
	switch cfg.Driver {
	case "", config.DriverNone:
		return nil, noop, nil
	case config.DriverMemory:
		return NewMemoryRepository(), noop, nil
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		repo := NewPostgresRepository(pool, cfg.GetTable())
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		log.Infof("Postgres snapshot repository ready (table %s)", cfg.GetTable())
		return repo, pool.Close, nil
	case config.DriverDynamoDB:
		client, err := NewDynamoClient(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, noop, err
		}
		log.Infof("DynamoDB snapshot repository ready (table %s, region %s)", cfg.GetTable(), cfg.Region)
		return NewDynamoRepository(client, cfg.GetTable()), noop, nil
	default:
		return nil, noop, reductoerrors.NewConfigError(fmt.Sprintf("unknown persistence driver '%s'", cfg.Driver), nil)
	}
}
