// Package extension implements the capability registry: per capability, a
// table of named implementations built lazily as process-lifetime
// singletons, decorated by wrapper extensions in a fixed order, and
// resolvable per-call from an address value (see Adaptive).
//
// The registry is an explicit instance owned by the bootstrap, not package
// state; everything that needs extension lookup receives it by reference.
package extension

import (
	"sort"
	"sync"

	"github.com/artpar/rpcgate/domain/address"
)

// Capability names an abstract contract with swappable implementations.
type Capability string

// Factory constructs one extension instance. The registry passes itself in
// so factories can resolve the extensions they depend on.
type Factory func(r *Registry) (any, error)

// WrapFunc decorates an extension instance. Wrappers are applied to every
// non-wrapper instance of their capability.
type WrapFunc func(r *Registry, inner any) any

type wrapper struct {
	name     string
	priority int
	wrap     WrapFunc
}

type entry struct {
	once sync.Once
	val  any
	err  error
}

type adaptiveSpec struct {
	keys        []string
	defaultName string
	useScheme   bool
}

// Registry owns the registered extensions of every capability.
type Registry struct {
	mu        sync.Mutex
	factories map[Capability]map[string]Factory
	wrappers  map[Capability][]wrapper
	instances map[Capability]map[string]*entry
	specs     map[Capability]adaptiveSpec
	adaptives map[Capability]*Adaptive
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Capability]map[string]Factory),
		wrappers:  make(map[Capability][]wrapper),
		instances: make(map[Capability]map[string]*entry),
		specs:     make(map[Capability]adaptiveSpec),
		adaptives: make(map[Capability]*Adaptive),
	}
}

// Register adds a named implementation of a capability. Names are
// lowercase by convention and unique within the capability.
func (r *Registry) Register(cap Capability, name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factories[cap] == nil {
		r.factories[cap] = make(map[string]Factory)
	}
	if _, exists := r.factories[cap][name]; exists {
		return &DuplicateError{Capability: cap, Name: name}
	}
	r.factories[cap][name] = factory
	return nil
}

// Replace registers an implementation, overwriting any existing one with
// the same name. Intended for tests and explicit overrides.
func (r *Registry) Replace(cap Capability, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factories[cap] == nil {
		r.factories[cap] = make(map[string]Factory)
	}
	r.factories[cap][name] = factory
	// Drop a cached instance so the replacement takes effect.
	if r.instances[cap] != nil {
		delete(r.instances[cap], name)
	}
}

// RegisterWrapper adds a decorator applied around every instance of the
// capability. Wrappers compose in ascending priority order: the lowest
// priority wrapper becomes the outermost layer.
func (r *Registry) RegisterWrapper(cap Capability, name string, priority int, wrap WrapFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrappers[cap] = append(r.wrappers[cap], wrapper{name: name, priority: priority, wrap: wrap})
}

// Has reports whether name is registered for the capability.
func (r *Registry) Has(cap Capability, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[cap][name]
	return ok
}

// Names returns the registered implementation names of a capability, sorted.
func (r *Registry) Names(cap Capability) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories[cap]))
	for n := range r.factories[cap] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the singleton instance registered under name, building and
// wrapping it on first use. Concurrent first access builds exactly once.
func (r *Registry) Get(cap Capability, name string) (any, error) {
	r.mu.Lock()
	factory, ok := r.factories[cap][name]
	if !ok {
		registered := make([]string, 0, len(r.factories[cap]))
		for n := range r.factories[cap] {
			registered = append(registered, n)
		}
		sort.Strings(registered)
		r.mu.Unlock()
		return nil, &NotFoundError{Capability: cap, Name: name, Registered: registered}
	}
	if r.instances[cap] == nil {
		r.instances[cap] = make(map[string]*entry)
	}
	e, ok := r.instances[cap][name]
	if !ok {
		e = &entry{}
		r.instances[cap][name] = e
	}
	wrappers := append([]wrapper(nil), r.wrappers[cap]...)
	r.mu.Unlock()

	// Built outside the registry lock so a factory may resolve other
	// extensions through the registry without deadlocking.
	e.once.Do(func() {
		val, err := factory(r)
		if err != nil {
			e.err = err
			return
		}
		sort.SliceStable(wrappers, func(i, j int) bool {
			return wrappers[i].priority > wrappers[j].priority
		})
		for _, w := range wrappers {
			val = w.wrap(r, val)
		}
		e.val = val
	})
	return e.val, e.err
}

// RegisterAdaptive declares how the capability resolves adaptively: the
// ordered candidate parameter keys consulted on the call address, and the
// default name used when none match. When useScheme is true the address
// scheme is consulted before the candidate keys.
func (r *Registry) RegisterAdaptive(cap Capability, keys []string, defaultName string, useScheme bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[cap] = adaptiveSpec{
		keys:        append([]string(nil), keys...),
		defaultName: defaultName,
		useScheme:   useScheme,
	}
}

// Adaptive returns the dispatch proxy for a capability. Exactly one proxy
// exists per capability; building it is idempotent.
func (r *Registry) Adaptive(cap Capability) (*Adaptive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adaptives[cap]; ok {
		return a, nil
	}
	spec, ok := r.specs[cap]
	if !ok {
		return nil, &NotFoundError{Capability: cap, Name: "<adaptive>"}
	}
	a := &Adaptive{registry: r, capability: cap, spec: spec}
	r.adaptives[cap] = a
	return a, nil
}

// Adaptive resolves, per call, which named implementation of a capability
// to use, keyed by the call's address value.
type Adaptive struct {
	registry   *Registry
	capability Capability
	spec       adaptiveSpec
}

// ResolveName returns the extension name the address selects: the scheme
// (when declared), then the candidate keys in order, first non-empty value
// wins, falling back to the declared default.
func (a *Adaptive) ResolveName(url address.URL) string {
	if a.spec.useScheme && url.Scheme() != "" {
		return url.Scheme()
	}
	for _, key := range a.spec.keys {
		if v := url.Param(key); v != "" {
			return v
		}
	}
	return a.spec.defaultName
}

// Resolve returns the implementation the address selects.
func (a *Adaptive) Resolve(url address.URL) (any, error) {
	name := a.ResolveName(url)
	v, err := a.registry.Get(a.capability, name)
	if err != nil {
		return nil, &ResolutionError{Capability: a.capability, Name: name, URL: url.String(), cause: err}
	}
	return v, nil
}
