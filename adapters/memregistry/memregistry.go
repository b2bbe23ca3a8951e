// Package memregistry is an in-process service registry, useful for tests
// and single-node deployments.
package memregistry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// Factory opens in-memory registries. All addresses with the same authority
// share one registry instance.
type Factory struct {
	logger zerolog.Logger

	mu         sync.Mutex
	registries map[string]*Registry
}

// NewFactory creates the factory.
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{
		logger:     logger.With().Str("component", "memregistry").Logger(),
		registries: make(map[string]*Registry),
	}
}

// Open returns the registry for the address authority, creating it on first
// use.
func (f *Factory) Open(url address.URL) (ports.Registry, error) {
	key := url.Authority()
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.registries[key]; ok {
		return r, nil
	}
	r := &Registry{
		logger:  f.logger.With().Str("registry", key).Logger(),
		entries: make(map[string]address.URL),
	}
	f.registries[key] = r
	return r, nil
}

// Registry holds registered provider addresses keyed by their canonical
// string form.
type Registry struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]address.URL
}

// Register records the address. Re-registering the same address is a no-op.
func (r *Registry) Register(ctx context.Context, url address.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.entries[url.String()] = url
	r.mu.Unlock()
	r.logger.Debug().Str("url", url.String()).Msg("registered")
	return nil
}

// Unregister removes the address. Unknown addresses are ignored.
func (r *Registry) Unregister(ctx context.Context, url address.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entries, url.String())
	r.mu.Unlock()
	r.logger.Debug().Str("url", url.String()).Msg("unregistered")
	return nil
}

// Registered returns a snapshot of all registered addresses.
func (r *Registry) Registered() []address.URL {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]address.URL, 0, len(r.entries))
	for _, u := range r.entries {
		out = append(out, u)
	}
	return out
}

// Has reports whether the exact address is registered.
func (r *Registry) Has(url address.URL) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[url.String()]
	return ok
}
