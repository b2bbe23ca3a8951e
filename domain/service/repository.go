package service

import (
	"fmt"
	"reflect"
	"sync"
)

// Provider pairs a descriptor with the concrete reference being exported.
type Provider struct {
	Descriptor *Descriptor
	Ref        any
}

// Repository holds the descriptors and providers known to the process.
// A descriptor is created once per distinct interface+group+version and
// shared across repeated exports of the same triple.
type Repository struct {
	mu        sync.RWMutex
	services  map[string]*Descriptor
	providers map[string]Provider
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		services:  make(map[string]*Descriptor),
		providers: make(map[string]Provider),
	}
}

// RegisterService returns the shared descriptor for the triple, building it
// on first use.
func (r *Repository) RegisterService(iface reflect.Type, name, group, version string) (*Descriptor, error) {
	if name == "" && iface != nil {
		name = InterfaceName(iface)
	}
	key := Key(name, group, version)

	r.mu.RLock()
	d, ok := r.services[key]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.services[key]; ok {
		return d, nil
	}
	d, err := Describe(iface, name, group, version)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", key, err)
	}
	r.services[key] = d
	return d, nil
}

// RegisterProvider records the reference serving a descriptor.
func (r *Repository) RegisterProvider(d *Descriptor, ref any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[d.Key()] = Provider{Descriptor: d, Ref: ref}
}

// Service returns the descriptor registered under key, if any.
func (r *Repository) Service(key string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.services[key]
	return d, ok
}

// Provider returns the provider registered under key, if any.
func (r *Repository) Provider(key string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	return p, ok
}
