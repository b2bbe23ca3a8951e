package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/adapters/httprpc"
	"github.com/artpar/rpcgate/adapters/injvm"
	"github.com/artpar/rpcgate/adapters/memregistry"
	"github.com/artpar/rpcgate/adapters/proxy"
	"github.com/artpar/rpcgate/adapters/regproto"
	"github.com/artpar/rpcgate/adapters/wrapper"
	"github.com/artpar/rpcgate/core/capability"
	"github.com/artpar/rpcgate/core/extension"
	"github.com/artpar/rpcgate/ports"
)

// NewExtensionRegistry builds the extension registry with every built-in
// transport, wrapper, proxy factory and registry backend, plus the adaptive
// dispatch rules for each capability.
func NewExtensionRegistry(logger zerolog.Logger) (*extension.Registry, error) {
	r := extension.NewRegistry()

	protocols := map[string]extension.Factory{
		"injvm": func(*extension.Registry) (any, error) {
			return injvm.New(logger), nil
		},
		"http": func(*extension.Registry) (any, error) {
			return httprpc.New(logger), nil
		},
		"registry": func(r *extension.Registry) (any, error) {
			return regproto.New(r, logger), nil
		},
	}
	for name, factory := range protocols {
		if err := r.Register(capability.Protocol, name, factory); err != nil {
			return nil, err
		}
	}

	// Token guard outermost, lifecycle logging inside it.
	r.RegisterWrapper(capability.Protocol, "token-filter", wrapper.FilterPriority,
		func(_ *extension.Registry, inner any) any {
			if p, ok := inner.(ports.Protocol); ok {
				return wrapper.NewFilter(p, logger)
			}
			return inner
		})
	r.RegisterWrapper(capability.Protocol, "export-listener", wrapper.ListenerPriority,
		func(_ *extension.Registry, inner any) any {
			if p, ok := inner.(ports.Protocol); ok {
				return wrapper.NewListener(p, logger)
			}
			return inner
		})

	if err := r.Register(capability.Proxy, "reflect", func(*extension.Registry) (any, error) {
		return proxy.New(), nil
	}); err != nil {
		return nil, err
	}

	if err := r.Register(capability.Registry, "memory", func(*extension.Registry) (any, error) {
		return memregistry.NewFactory(logger), nil
	}); err != nil {
		return nil, err
	}

	r.RegisterAdaptive(capability.Protocol, nil, "", true)
	r.RegisterAdaptive(capability.Proxy, []string{"proxy"}, "reflect", false)
	r.RegisterAdaptive(capability.Registry, []string{"registry"}, "memory", false)

	return r, nil
}
