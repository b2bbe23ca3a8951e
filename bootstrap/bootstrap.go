// Package bootstrap wires all dependencies and manages the provider
// lifecycle: it loads configuration, builds the extension registry, binds
// service implementations to their configuration and drives the export of
// every configured service.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/adapters/clock"
	"github.com/artpar/rpcgate/adapters/idgen"
	"github.com/artpar/rpcgate/adapters/sqlite"
	"github.com/artpar/rpcgate/config"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/core/events"
	"github.com/artpar/rpcgate/core/export"
	"github.com/artpar/rpcgate/core/extension"
	"github.com/artpar/rpcgate/core/metrics"
	"github.com/artpar/rpcgate/domain/service"
	"github.com/artpar/rpcgate/ports"
)

// provided is one implementation bound by code, awaiting its configuration.
type provided struct {
	iface reflect.Type
	ref   any
}

// App is the running provider application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Extensions *extension.Registry
	Events     *events.Bus
	Metrics    *metrics.Collector
	Repository *service.Repository

	db        *sqlite.DB
	metadata  ports.MetadataService
	ports     *export.PortCache
	metricsrv *http.Server

	implementations map[string]provided
	services        []*export.Service
	stopOnce        sync.Once
}

// New creates and initializes the application from a config file.
func New(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging)
	logger.Info().Str("application", cfg.Application.Name).Msg("initializing rpcgate")

	extensions, err := NewExtensionRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("build extension registry: %w", err)
	}

	a := &App{
		Logger:          logger,
		Config:          holder,
		Extensions:      extensions,
		Events:          events.NewBus(logger),
		Repository:      service.NewRepository(),
		ports:           export.NewPortCache(),
		implementations: make(map[string]provided),
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewCollector("rpcgate")
		a.Metrics.Attach(a.Events)
		logger.Info().Str("bind", cfg.Metrics.Bind).Msg("prometheus metrics enabled")
	}

	if cfg.Metadata.Type == "sqlite" {
		if err := a.initMetadata(cfg.Metadata.DSN); err != nil {
			return nil, fmt.Errorf("init metadata store: %w", err)
		}
	}

	return a, nil
}

func (a *App) initMetadata(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return err
	}
	a.db = db
	a.metadata = sqlite.NewMetadataStore(db)
	a.Logger.Info().Str("dsn", dsn).Msg("sqlite metadata store ready")
	return nil
}

// Provide binds a service implementation to the configured service of the
// same name. Must be called before Start.
func (a *App) Provide(name string, iface reflect.Type, ref any) {
	a.implementations[name] = provided{iface: iface, ref: ref}
}

// ProvideGeneric binds a generic service implementation.
func (a *App) ProvideGeneric(name string, ref ports.GenericService) {
	a.implementations[name] = provided{ref: ref}
}

// Start exports every configured service and, when enabled, starts the
// metrics endpoint. Configured services with no bound implementation fail
// the start.
func (a *App) Start() error {
	cfg := a.Config.Get()

	registries, err := parseRegistries(cfg.Registries)
	if err != nil {
		return err
	}
	monitor, err := parseMonitor(cfg.Application.Monitor)
	if err != nil {
		return err
	}

	for _, sc := range cfg.Services {
		impl, ok := a.implementations[sc.Name]
		if !ok {
			return fmt.Errorf("service %q configured but no implementation provided", sc.Name)
		}
		opts, err := serviceOptions(cfg, sc, impl, registries, monitor)
		if err != nil {
			return err
		}
		svc, err := export.New(opts, export.Deps{
			Extensions: a.Extensions,
			Repository: a.Repository,
			Events:     a.Events,
			Metadata:   a.metadata,
			Ports:      a.ports,
			IDs:        idgen.UUID{},
			Clock:      clock.Real{},
			Logger:     a.Logger,
		})
		if err != nil {
			return fmt.Errorf("service %q: %w", sc.Name, err)
		}
		if err := svc.Export(); err != nil {
			a.stopServices()
			return fmt.Errorf("export %q: %w", sc.Name, err)
		}
		a.services = append(a.services, svc)
	}

	if a.Metrics != nil {
		a.startMetricsServer(cfg.Metrics)
	}

	a.Logger.Info().Int("services", len(a.services)).Msg("provider started")
	return nil
}

// Services returns the export pipelines Start created.
func (a *App) Services() []*export.Service {
	return append([]*export.Service(nil), a.services...)
}

func (a *App) startMetricsServer(mc config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(mc.Path, a.Metrics.Handler())
	a.metricsrv = &http.Server{Addr: mc.Bind, Handler: mux}
	go func() {
		if err := a.metricsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func (a *App) stopServices() {
	for _, svc := range a.services {
		svc.Unexport()
	}
	a.services = nil
}

// Stop unexports every service and releases the infrastructure. Safe to
// call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.Logger.Info().Msg("shutting down")
		a.stopServices()

		if a.metricsrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.metricsrv.Shutdown(ctx)
			cancel()
		}
		if a.db != nil {
			a.db.Close()
		}
		a.Config.Stop()
	})
}

// parseRegistries turns the configured registry addresses into URLs,
// folding the dynamic flag into the address parameters.
func parseRegistries(rcs []config.RegistryConfig) ([]address.URL, error) {
	var out []address.URL
	for _, rc := range rcs {
		u, err := address.Parse(rc.Address)
		if err != nil {
			return nil, fmt.Errorf("registry address %q: %w", rc.Address, err)
		}
		if rc.Dynamic != nil {
			u = u.WithParam("dynamic", strconv.FormatBool(*rc.Dynamic))
		}
		out = append(out, u)
	}
	return out, nil
}

func parseMonitor(raw string) (*address.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := address.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("monitor address %q: %w", raw, err)
	}
	return &u, nil
}

// serviceOptions translates one configured service into export options.
func serviceOptions(cfg *config.Config, sc config.ServiceConfig, impl provided,
	registries []address.URL, monitor *address.URL) (export.Options, error) {

	opts := export.Options{
		Name:     sc.Name,
		Group:    sc.Group,
		Version:  sc.Version,
		Path:     sc.Path,
		Generic:  sc.Generic,
		Disabled: sc.Disabled,
		Delay:    sc.Delay,
		Token:    sc.Token,
		Scope:    sc.Scope,
		Ref:      impl.ref,
		Application: map[string]string{
			"application": cfg.Application.Name,
		},
		Params: sc.Params,
	}
	if cfg.Metadata.Type != "" {
		opts.MetadataType = cfg.Metadata.Type
	}
	if !sc.Generic {
		opts.Interface = impl.iface
	}
	if cfg.Application.Owner != "" {
		opts.Application["owner"] = cfg.Application.Owner
	}
	for k, v := range cfg.Application.Params {
		opts.Application[k] = v
	}
	if cfg.Application.Module != "" {
		opts.Module = map[string]string{"module": cfg.Application.Module}
	}

	opts.Provider = &export.ProviderOptions{
		Host:   cfg.Provider.Host,
		Port:   cfg.Provider.Port,
		Token:  cfg.Provider.Token,
		Params: cfg.Provider.Params,
	}

	names := sc.Protocols
	if len(names) == 0 {
		for _, pc := range cfg.Protocols {
			names = append(names, pc.Name)
		}
	}
	for _, name := range names {
		pc, ok := cfg.Protocol(name)
		if !ok {
			return export.Options{}, fmt.Errorf("service %q references unconfigured protocol %q", sc.Name, name)
		}
		opts.Protocols = append(opts.Protocols, export.ProtocolOptions{
			Name:        pc.Name,
			Host:        pc.Host,
			Port:        pc.Port,
			ContextPath: pc.ContextPath,
			Params:      pc.Params,
		})
	}

	for _, mc := range sc.Methods {
		m := export.MethodOptions{Name: mc.Name, Params: mc.Params}
		for _, ac := range mc.Arguments {
			m.Arguments = append(m.Arguments, export.ArgumentOptions{
				Index:    ac.Index,
				Type:     ac.Type,
				Callback: ac.Callback,
				Params:   ac.Params,
			})
		}
		opts.Methods = append(opts.Methods, m)
	}

	opts.Registries = registries
	opts.Monitor = monitor
	return opts, nil
}

func setupLogger(lc config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if lc.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
