// Package registry maps application names to session factories. Apps
// register themselves from init(); the CLI picks one by name from config.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gxo-labs/reducto/internal/session"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// Factory opens a session of one application.
type Factory func(opts session.Options) (session.Session, error)

// StaticRegistry is a thread-safe, compile-time populated set of factories.
type StaticRegistry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]Factory)}
}

// Register adds a factory. Empty names, nil factories and duplicates are
// rejected.
func (r *StaticRegistry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return reductoerrors.NewConfigError("app registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return reductoerrors.NewConfigError(fmt.Sprintf("app registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return reductoerrors.NewConfigError(fmt.Sprintf("app registration error: duplicate app name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the factory registered under name, or an AppNotFoundError.
func (r *StaticRegistry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, reductoerrors.NewAppNotFoundError(name)
	}
	return factory, nil
}

// Open looks up name and opens a session with opts.
func (r *StaticRegistry) Open(name string, opts session.Options) (session.Session, error) {
	factory, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return factory(opts)
}

// List returns the registered names in sorted order.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var globalRegistry = NewStaticRegistry()

// Register adds factory to the default registry. It panics on error: it runs
// from init() and a failure there is a programming mistake.
func Register(name string, factory Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register app '%s' globally: %w", name, err))
	}
}

// Default returns the registry filled by Register.
func Default() *StaticRegistry {
	return globalRegistry
}
