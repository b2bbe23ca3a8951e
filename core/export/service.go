// Package export implements the service export pipeline: it turns a
// validated service description plus protocol and registry configurations
// into live exporters, one per protocol and registry combination, with
// idempotent lifecycle, delayed activation, local/remote scoping and
// deterministic host/port resolution.
package export

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/artpar/rpcgate/core/capability"
	"github.com/artpar/rpcgate/core/events"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/domain/service"
	"github.com/artpar/rpcgate/ports"
)

var genericType = reflect.TypeOf((*ports.GenericService)(nil)).Elem()

// Service drives the export of one service instance. Export and Unexport
// are safe for concurrent use; at most one export runs at a time.
type Service struct {
	opts Options
	deps Deps

	mu         sync.Mutex
	exported   bool
	unexported bool
	descriptor *service.Descriptor
	exporters  []ports.Exporter
	urls       []address.URL
}

// New creates an export pipeline for one service. Configuration is
// validated on Export, not here.
func New(opts Options, deps Deps) (*Service, error) {
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With().Str("component", "export").Logger()
	return &Service{opts: opts, deps: deps}, nil
}

// Exported reports whether the service is currently exported.
func (s *Service) Exported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exported && !s.unexported
}

// URLs returns the export addresses built so far (including scope=none
// addresses, which are recorded for introspection without being exported).
func (s *Service) URLs() []address.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]address.URL(nil), s.urls...)
}

// Exporters returns the live exporter handles.
func (s *Service) Exporters() []ports.Exporter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Exporter(nil), s.exporters...)
}

// Export validates the configuration and publishes the service on every
// configured protocol. Exporting an already-exported service is a no-op;
// exporting after Unexport fails. With a configured delay the export runs
// on the shared scheduler and errors are logged instead of returned.
func (s *Service) Export() error {
	s.mu.Lock()

	if s.opts.Disabled {
		s.mu.Unlock()
		s.deps.Logger.Info().Str("service", s.opts.Name).Msg("export disabled, skipping")
		return nil
	}
	if s.unexported {
		s.mu.Unlock()
		return configErrorf("service %q already unexported", s.serviceName())
	}
	if s.exported {
		s.mu.Unlock()
		return nil
	}

	if err := s.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.exported = true

	if s.opts.Delay > 0 {
		delay := s.opts.Delay
		s.mu.Unlock()
		s.deps.Scheduler.Schedule(delay, s.delayedExport)
		return nil
	}

	if err := s.doExport(); err != nil {
		s.rollback()
		s.mu.Unlock()
		return err
	}
	event := s.exportedEventLocked()
	s.mu.Unlock()

	s.deps.Events.Publish(context.Background(), event)
	return nil
}

// delayedExport runs the deferred part of Export on the shared scheduler.
func (s *Service) delayedExport() {
	s.mu.Lock()
	if s.unexported {
		s.mu.Unlock()
		return
	}
	if err := s.doExport(); err != nil {
		s.rollback()
		s.mu.Unlock()
		s.deps.Logger.Error().Err(err).Str("service", s.serviceName()).Msg("delayed export failed")
		return
	}
	event := s.exportedEventLocked()
	s.mu.Unlock()

	s.deps.Events.Publish(context.Background(), event)
}

// Unexport tears down every retained exporter. Individual teardown
// failures are logged, never propagated, so one bad listener cannot block
// releasing the others. Unexport is idempotent and sticky: the service
// cannot be re-exported afterwards.
func (s *Service) Unexport() {
	s.mu.Lock()
	if !s.exported || s.unexported {
		s.mu.Unlock()
		return
	}
	for _, exporter := range s.exporters {
		if err := exporter.Unexport(); err != nil {
			s.deps.Logger.Warn().Err(err).Str("service", s.serviceName()).Msg("exporter teardown failed")
		}
	}
	s.exporters = nil
	s.unexported = true
	urls := make([]string, len(s.urls))
	for i, u := range s.urls {
		urls[i] = u.String()
	}
	event := events.Event{
		Name:       events.ServiceUnexported,
		ServiceKey: s.descriptor.Key(),
		URLs:       urls,
		At:         s.deps.Clock.Now(),
	}
	s.mu.Unlock()

	s.deps.Events.Publish(context.Background(), event)
}

// validate completes and checks the configuration and resolves the service
// descriptor. Called under s.mu.
func (s *Service) validate() error {
	if s.opts.Generic {
		if s.opts.Name == "" {
			return configErrorf("generic export requires an explicit service name")
		}
		if _, ok := s.opts.Ref.(ports.GenericService); !ok {
			return configErrorf("generic export reference %T does not implement GenericService", s.opts.Ref)
		}
		s.opts.Interface = genericType
	} else {
		if s.opts.Interface == nil {
			return configErrorf("service interface not set")
		}
		if s.opts.Interface.Kind() != reflect.Interface {
			return configErrorf("service type %s is not an interface", s.opts.Interface)
		}
		if s.opts.Ref == nil {
			return configErrorf("service reference not set")
		}
		if !reflect.TypeOf(s.opts.Ref).Implements(s.opts.Interface) {
			return configErrorf("reference type %T does not implement %s", s.opts.Ref, s.opts.Interface)
		}
	}

	if s.opts.Local != nil && !service.Implements(s.opts.Interface, s.opts.Local) {
		return configErrorf("local implementation %s does not implement %s", s.opts.Local, s.opts.Interface)
	}
	if s.opts.Stub != nil && !service.Implements(s.opts.Interface, s.opts.Stub) {
		return configErrorf("stub implementation %s does not implement %s", s.opts.Stub, s.opts.Interface)
	}

	if len(s.opts.Protocols) == 0 {
		s.opts.Protocols = []ProtocolOptions{{Name: DefaultProtocolName}}
	}
	for i := range s.opts.Protocols {
		if s.opts.Protocols[i].Name == "" {
			s.opts.Protocols[i].Name = DefaultProtocolName
		}
	}

	if !s.onlyInJVM() {
		for _, reg := range s.opts.Registries {
			if reg.Scheme() == "" || reg.Host() == "" {
				return configErrorf("invalid registry address %q", reg.String())
			}
		}
	}

	d, err := s.deps.Repository.RegisterService(s.opts.Interface, s.opts.Name, s.opts.Group, s.opts.Version)
	if err != nil {
		return configErrorf("%v", err)
	}
	s.descriptor = d

	if !s.opts.Generic {
		for _, m := range s.opts.Methods {
			if _, ok := d.Method(m.Name); !ok {
				return configErrorf("method %q not found on interface %s", m.Name, d.Name)
			}
		}
	}

	if s.opts.Path == "" {
		s.opts.Path = d.Name
	}
	return nil
}

// doExport builds and publishes the export addresses. Called under s.mu.
func (s *Service) doExport() error {
	s.deps.Repository.RegisterProvider(s.descriptor, s.opts.Ref)
	for _, pc := range s.opts.Protocols {
		if err := s.exportProtocol(pc, s.opts.Registries); err != nil {
			return err
		}
	}
	return nil
}

// exportProtocol performs the per-protocol export: parameter assembly,
// host/port resolution, the configurator hook, scope gating, the local
// export and the remote registry fan-out.
func (s *Service) exportProtocol(pc ProtocolOptions, registries []address.URL) error {
	name := pc.Name

	params, err := s.buildParams(pc)
	if err != nil {
		return err
	}

	host, err := s.findConfiguredHost(pc, registries, params)
	if err != nil {
		return err
	}
	port, err := s.findConfiguredPort(pc, name, params)
	if err != nil {
		return err
	}

	path := s.opts.Path
	if pc.ContextPath != "" {
		path = strings.TrimSuffix(pc.ContextPath, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	url := address.New(name, host, port, path, params)

	// Optional per-scheme configurator hook.
	configurator, err := capability.ConfiguratorFor(s.deps.Extensions, url.Scheme())
	if err != nil {
		return err
	}
	if configurator != nil {
		url, err = configurator.Configure(url)
		if err != nil {
			return configErrorf("configurator for scheme %q: %v", name, err)
		}
	}

	scope := url.ParamOr(ScopeKey, "")
	defer func() {
		s.urls = append(s.urls, url)
	}()

	// No export at all when scope is none; the address is still recorded.
	if strings.EqualFold(scope, ScopeNone) {
		return nil
	}

	if !strings.EqualFold(scope, ScopeRemote) {
		if err := s.exportLocal(url); err != nil {
			return err
		}
	}
	if !strings.EqualFold(scope, ScopeLocal) {
		if err := s.exportRemote(&url, registries); err != nil {
			return err
		}
	}
	return nil
}

// exportRemote fans the export out over the configured registries, or
// exports directly when none are configured. Failures propagate and abort
// the remaining fan-out.
func (s *Service) exportRemote(url *address.URL, registries []address.URL) error {
	if len(registries) > 0 && !strings.EqualFold(url.Scheme(), LocalProtocol) {
		for _, registryURL := range registries {
			*url = url.WithParamIfAbsent(DynamicKey, registryURL.ParamOr(DynamicKey, ""))
			if s.opts.Monitor != nil {
				*url = url.WithEncodedParam(MonitorKey, *s.opts.Monitor)
			}
			if url.BoolParam(RegisterKey, true) {
				s.deps.Logger.Info().
					Str("service", s.descriptor.Name).
					Str("url", url.String()).
					Str("registry", registryURL.Authority()).
					Msg("registering service")
			} else {
				s.deps.Logger.Info().
					Str("service", s.descriptor.Name).
					Str("url", url.String()).
					Msg("exporting service without registration")
			}

			// A custom proxy strategy on the export address is honored
			// when building the invoker for the registry path.
			if proxy := url.ParamOr(ProxyKey, ""); proxy != "" {
				registryURL = registryURL.WithParam(ProxyKey, proxy)
			}

			invoker, err := s.newInvoker(registryURL.WithEncodedParam(ExportKey, *url))
			if err != nil {
				return err
			}
			protocol, err := capability.ResolveProtocol(s.deps.Extensions, registryURL)
			if err != nil {
				return err
			}
			exporter, err := protocol.Export(invoker)
			if err != nil {
				return err
			}
			s.exporters = append(s.exporters, exporter)
		}
	} else if !strings.EqualFold(url.Scheme(), LocalProtocol) {
		s.deps.Logger.Info().
			Str("service", s.descriptor.Name).
			Str("url", url.String()).
			Msg("exporting service")
		invoker, err := s.newInvoker(*url)
		if err != nil {
			return err
		}
		protocol, err := capability.ResolveProtocol(s.deps.Extensions, *url)
		if err != nil {
			return err
		}
		exporter, err := protocol.Export(invoker)
		if err != nil {
			return err
		}
		s.exporters = append(s.exporters, exporter)
	}

	s.publishMetadata(*url)
	return nil
}

// exportLocal publishes the service in-process, independent of the remote
// fan-out, so same-process callers avoid the network.
func (s *Service) exportLocal(url address.URL) error {
	local := url.
		WithScheme(LocalProtocol).
		WithHost(LocalHost).
		WithPort(0)
	invoker, err := s.newInvoker(local)
	if err != nil {
		return err
	}
	protocol, err := capability.ResolveProtocol(s.deps.Extensions, local)
	if err != nil {
		return err
	}
	exporter, err := protocol.Export(invoker)
	if err != nil {
		return err
	}
	s.exporters = append(s.exporters, exporter)
	s.deps.Logger.Info().
		Str("service", s.descriptor.Name).
		Str("url", local.String()).
		Msg("exported service in-process")
	return nil
}

// newInvoker asks the adaptive proxy factory for an invoker around the
// service reference and attaches the descriptor.
func (s *Service) newInvoker(url address.URL) (ports.Invoker, error) {
	factory, err := capability.ResolveProxyFactory(s.deps.Extensions, url)
	if err != nil {
		return nil, err
	}
	invoker, err := factory.NewInvoker(s.opts.Ref, s.opts.Interface, url)
	if err != nil {
		return nil, err
	}
	return providerInvoker{Invoker: invoker, descriptor: s.descriptor}, nil
}

// publishMetadata records the final export address in the metadata store
// the address's metadata parameter names. Best-effort: a missing backend is
// tolerated, failures are logged.
func (s *Service) publishMetadata(url address.URL) {
	if s.deps.Metadata == nil {
		return
	}
	backend := url.ParamOr(MetadataKey, "")
	if backend == "" || strings.EqualFold(backend, MetadataNone) {
		return
	}
	if err := s.deps.Metadata.PublishServiceDefinition(context.Background(), url); err != nil {
		s.deps.Logger.Warn().Err(err).Str("url", url.String()).Msg("metadata publication failed")
	}
}

// rollback tears down partially created exporters after a failed export.
// Called under s.mu.
func (s *Service) rollback() {
	for _, exporter := range s.exporters {
		if err := exporter.Unexport(); err != nil {
			s.deps.Logger.Warn().Err(err).Msg("rollback teardown failed")
		}
	}
	s.exporters = nil
	s.urls = nil
	s.exported = false
}

// onlyInJVM reports whether the in-process transport is the only target.
func (s *Service) onlyInJVM() bool {
	return len(s.opts.Protocols) == 1 &&
		strings.EqualFold(s.opts.Protocols[0].Name, LocalProtocol)
}

func (s *Service) serviceName() string {
	if s.descriptor != nil {
		return s.descriptor.Name
	}
	if s.opts.Name != "" {
		return s.opts.Name
	}
	if s.opts.Interface != nil {
		return service.InterfaceName(s.opts.Interface)
	}
	return "<unnamed>"
}

// exportedEventLocked builds the exported lifecycle event. Called under s.mu.
func (s *Service) exportedEventLocked() events.Event {
	urls := make([]string, len(s.urls))
	for i, u := range s.urls {
		urls[i] = u.String()
	}
	return events.Event{
		Name:       events.ServiceExported,
		ServiceKey: s.descriptor.Key(),
		URLs:       urls,
		At:         s.deps.Clock.Now(),
	}
}
