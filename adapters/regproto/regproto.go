// Package regproto is the registry-aware transport. Exporting through it
// registers the provider address with the registry named by the address
// scheme, then hands the call surface to the real transport encoded in the
// export parameter.
package regproto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/core/capability"
	"github.com/artpar/rpcgate/core/export"
	"github.com/artpar/rpcgate/core/extension"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// registerTimeout bounds one registry round trip.
const registerTimeout = 10 * time.Second

// Protocol registers provider addresses and delegates the actual export.
type Protocol struct {
	extensions *extension.Registry
	logger     zerolog.Logger

	mu         sync.Mutex
	registries map[string]ports.Registry
}

// New creates the registry-aware transport. Registries are opened lazily
// through the registry factory capability and cached per address.
func New(extensions *extension.Registry, logger zerolog.Logger) *Protocol {
	return &Protocol{
		extensions: extensions,
		logger:     logger.With().Str("component", "regproto").Logger(),
		registries: make(map[string]ports.Registry),
	}
}

// DefaultPort returns 0: the transport has no listener of its own.
func (p *Protocol) DefaultPort() int { return 0 }

// Export registers the embedded provider address, unless register=false,
// and re-exports the invoker through the transport the embedded address
// names.
func (p *Protocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	registryURL := inv.URL()
	providerURL, err := address.Parse(registryURL.EncodedParam(export.ExportKey))
	if err != nil {
		return nil, fmt.Errorf("regproto: missing export address on %s: %w", registryURL.Authority(), err)
	}

	registry, err := p.registryFor(registryURL)
	if err != nil {
		return nil, err
	}

	shouldRegister := providerURL.BoolParam(export.RegisterKey, true)
	if shouldRegister {
		ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
		err = registry.Register(ctx, providerURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("regproto: register %s with %s: %w", providerURL.Path(), registryURL.Authority(), err)
		}
		p.logger.Info().
			Str("service", providerURL.Path()).
			Str("registry", registryURL.Authority()).
			Msg("registered provider")
	}

	transport, err := capability.ResolveProtocol(p.extensions, providerURL)
	if err != nil {
		return nil, err
	}
	inner, err := transport.Export(export.Rebase(inv, providerURL))
	if err != nil {
		if shouldRegister {
			p.unregister(registry, providerURL)
		}
		return nil, err
	}

	return &exporter{
		protocol:   p,
		registry:   registry,
		registered: shouldRegister,
		provider:   providerURL,
		inner:      inner,
	}, nil
}

func (p *Protocol) registryFor(url address.URL) (ports.Registry, error) {
	key := url.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	if registry, ok := p.registries[key]; ok {
		return registry, nil
	}
	factory, err := capability.ResolveRegistryFactory(p.extensions, url)
	if err != nil {
		return nil, err
	}
	registry, err := factory.Open(url)
	if err != nil {
		return nil, fmt.Errorf("regproto: open registry %s: %w", url.Authority(), err)
	}
	p.registries[key] = registry
	return registry, nil
}

func (p *Protocol) unregister(registry ports.Registry, url address.URL) {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()
	if err := registry.Unregister(ctx, url); err != nil {
		p.logger.Warn().Err(err).Str("service", url.Path()).Msg("unregister failed")
	}
}

type exporter struct {
	protocol   *Protocol
	registry   ports.Registry
	registered bool
	provider   address.URL
	inner      ports.Exporter

	mu   sync.Mutex
	done bool
}

func (e *exporter) Invoker() ports.Invoker { return e.inner.Invoker() }

// Unexport withdraws the registration before tearing down the transport.
func (e *exporter) Unexport() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	e.done = true
	if e.registered {
		e.protocol.unregister(e.registry, e.provider)
	}
	return e.inner.Unexport()
}
