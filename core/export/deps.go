package export

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/adapters/clock"
	"github.com/artpar/rpcgate/adapters/idgen"
	"github.com/artpar/rpcgate/core/events"
	"github.com/artpar/rpcgate/core/extension"
	"github.com/artpar/rpcgate/domain/service"
	"github.com/artpar/rpcgate/ports"
)

// Scheduler defers delayed exports. One shared instance serves the whole
// process; ordering between delayed exports of different services is not
// guaranteed.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler runs deferred work on the runtime timer.
type TimerScheduler struct{}

// Schedule runs fn after delay.
func (TimerScheduler) Schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

// Deps are the collaborators a Service exports through. Zero fields are
// filled with defaults by New; only Extensions is required.
type Deps struct {
	// Extensions resolves protocols, proxy factories and configurators.
	Extensions *extension.Registry

	// Repository shares service descriptors across exports.
	Repository *service.Repository

	// Events receives lifecycle notifications.
	Events *events.Bus

	// Metadata persists published service definitions; nil is tolerated.
	Metadata ports.MetadataService

	// Ports caches randomly probed ports per protocol name.
	Ports *PortCache

	// Scheduler defers delayed exports.
	Scheduler Scheduler

	// IDs generates security tokens.
	IDs ports.IDGenerator

	// Clock stamps lifecycle events.
	Clock ports.Clock

	Logger zerolog.Logger

	// Env reads configuration overrides; os.Getenv by default.
	Env func(string) string

	// LookupHost resolves the local DNS hostname to an address.
	LookupHost func() (string, error)

	// ProbeRegistry connects to a registry endpoint and reports the
	// locally routable interface address.
	ProbeRegistry func(host string, port int, timeout time.Duration) (string, error)

	// ProbePort finds an available OS port, preferring the hint.
	ProbePort func(hint int) (int, error)
}

func (d *Deps) normalize() error {
	if d.Extensions == nil {
		return configErrorf("extension registry not set")
	}
	if d.Repository == nil {
		d.Repository = service.NewRepository()
	}
	if d.Events == nil {
		d.Events = events.NewBus(d.Logger)
	}
	if d.Ports == nil {
		d.Ports = NewPortCache()
	}
	if d.Scheduler == nil {
		d.Scheduler = TimerScheduler{}
	}
	if d.IDs == nil {
		d.IDs = idgen.UUID{}
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Env == nil {
		d.Env = os.Getenv
	}
	if d.LookupHost == nil {
		d.LookupHost = lookupLocalDNS
	}
	if d.ProbeRegistry == nil {
		d.ProbeRegistry = probeRegistry
	}
	if d.ProbePort == nil {
		d.ProbePort = probeAvailablePort
	}
	return nil
}

// runtimeParams returns the environment facts recorded on every export
// address: framework release, process id and export timestamp.
func (s *Service) runtimeParams() map[string]string {
	return map[string]string{
		ReleaseKey:   Release,
		PIDKey:       strconv.Itoa(os.Getpid()),
		TimestampKey: strconv.FormatInt(s.deps.Clock.Now().UnixMilli(), 10),
	}
}
