// Package capability names the abstract contracts of the export layer and
// provides typed resolution helpers over the extension registry.
package capability

import (
	"fmt"

	"github.com/artpar/rpcgate/core/extension"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// The capabilities resolved through the extension registry.
const (
	// Protocol implementations are transports; resolved by address scheme.
	Protocol extension.Capability = "protocol"

	// Proxy implementations are proxy factories; resolved by the "proxy"
	// parameter.
	Proxy extension.Capability = "proxy"

	// Configurator implementations mutate export addresses; selected by
	// address scheme through Has/Get, not adaptively.
	Configurator extension.Capability = "configurator"

	// Registry implementations are discovery backend factories; resolved
	// by the "registry" parameter of the registry address.
	Registry extension.Capability = "registry"
)

// GetProtocol returns the named transport.
func GetProtocol(r *extension.Registry, name string) (ports.Protocol, error) {
	v, err := r.Get(Protocol, name)
	if err != nil {
		return nil, err
	}
	p, ok := v.(ports.Protocol)
	if !ok {
		return nil, fmt.Errorf("extension %q of capability %q is %T, not a Protocol", name, Protocol, v)
	}
	return p, nil
}

// ResolveProtocol resolves the transport adaptively for an address.
func ResolveProtocol(r *extension.Registry, url address.URL) (ports.Protocol, error) {
	a, err := r.Adaptive(Protocol)
	if err != nil {
		return nil, err
	}
	v, err := a.Resolve(url)
	if err != nil {
		return nil, err
	}
	p, ok := v.(ports.Protocol)
	if !ok {
		return nil, fmt.Errorf("extension %q of capability %q is %T, not a Protocol", a.ResolveName(url), Protocol, v)
	}
	return p, nil
}

// ResolveProxyFactory resolves the proxy factory adaptively for an address.
func ResolveProxyFactory(r *extension.Registry, url address.URL) (ports.ProxyFactory, error) {
	a, err := r.Adaptive(Proxy)
	if err != nil {
		return nil, err
	}
	v, err := a.Resolve(url)
	if err != nil {
		return nil, err
	}
	pf, ok := v.(ports.ProxyFactory)
	if !ok {
		return nil, fmt.Errorf("extension %q of capability %q is %T, not a ProxyFactory", a.ResolveName(url), Proxy, v)
	}
	return pf, nil
}

// ConfiguratorFor returns the configurator registered for an address scheme,
// or nil when none is registered. Missing configurators are not an error:
// the hook is optional.
func ConfiguratorFor(r *extension.Registry, scheme string) (ports.Configurator, error) {
	if !r.Has(Configurator, scheme) {
		return nil, nil
	}
	v, err := r.Get(Configurator, scheme)
	if err != nil {
		return nil, err
	}
	c, ok := v.(ports.Configurator)
	if !ok {
		return nil, fmt.Errorf("extension %q of capability %q is %T, not a Configurator", scheme, Configurator, v)
	}
	return c, nil
}

// ResolveRegistryFactory resolves the registry backend factory adaptively
// for a registry address.
func ResolveRegistryFactory(r *extension.Registry, url address.URL) (ports.RegistryFactory, error) {
	a, err := r.Adaptive(Registry)
	if err != nil {
		return nil, err
	}
	v, err := a.Resolve(url)
	if err != nil {
		return nil, err
	}
	f, ok := v.(ports.RegistryFactory)
	if !ok {
		return nil, fmt.Errorf("extension %q of capability %q is %T, not a RegistryFactory", a.ResolveName(url), Registry, v)
	}
	return f, nil
}
