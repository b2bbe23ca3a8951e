// Package ports defines interfaces (contracts) between the export core and
// its collaborators: transports, proxy factories, registry clients, metadata
// stores and infrastructure. Implementations live in adapters/.
package ports

import (
	"context"
	"reflect"
	"time"

	"github.com/artpar/rpcgate/domain/address"
)

// -----------------------------------------------------------------------------
// Invocation model
// -----------------------------------------------------------------------------

// Invocation is one RPC call flowing through an invoker.
type Invocation struct {
	// Method is the wire-level method name (first letter lowered).
	Method string

	// Args are the call arguments in declaration order.
	Args []any

	// Attachments carry out-of-band call metadata (token, trace ids).
	Attachments map[string]string
}

// Attachment returns an attachment value, or "" when absent.
func (inv Invocation) Attachment(key string) string {
	return inv.Attachments[key]
}

// Result is the outcome of an invocation.
type Result struct {
	Value       any
	Err         error
	Attachments map[string]string
}

// Invoker is an invokable handle on a service reference. It carries the
// address it was built for; transports and the registry-aware protocol rely
// on URL() to decide how to treat it.
type Invoker interface {
	// URL returns the address this invoker was created with.
	URL() address.URL

	// Interface returns the service interface type.
	Interface() reflect.Type

	// Invoke performs one call against the underlying reference.
	Invoke(ctx context.Context, inv Invocation) Result
}

// -----------------------------------------------------------------------------
// Transport and proxy ports
// -----------------------------------------------------------------------------

// Exporter owns one live listening resource produced by Protocol.Export.
// Unexport releases it; a second Unexport is the exporter's own concern.
type Exporter interface {
	// Invoker returns the invoker this exporter serves.
	Invoker() Invoker

	// Unexport releases the underlying resource.
	Unexport() error
}

// Protocol is a transport implementation. Export makes the invoker
// reachable under its URL and blocks until the listener is live; the export
// layer imposes no timeout of its own.
type Protocol interface {
	// Export publishes an invoker, returning the handle that owns the
	// listening resource.
	Export(inv Invoker) (Exporter, error)

	// DefaultPort returns the transport's default port, zero when the
	// transport has none (an ephemeral port will be probed).
	DefaultPort() int
}

// ProxyFactory builds invokers around concrete service references.
type ProxyFactory interface {
	// NewInvoker wraps ref, which must satisfy iface, into an invoker
	// bound to url.
	NewInvoker(ref any, iface reflect.Type, url address.URL) (Invoker, error)
}

// GenericService is implemented by references exported generically: method
// enumeration is bypassed and every method name is accepted.
type GenericService interface {
	Invoke(ctx context.Context, method string, args []any) (any, error)
}

// Filter intercepts invocations on the provider side. Filters are composed
// by the filtering protocol wrapper.
type Filter interface {
	// Invoke processes inv, delegating to next for the actual call.
	Invoke(ctx context.Context, next Invoker, inv Invocation) Result
}

// Configurator mutates an export address before it is published. Selected
// adaptively by the address scheme.
type Configurator interface {
	Configure(url address.URL) (address.URL, error)
}

// -----------------------------------------------------------------------------
// Registry and metadata ports
// -----------------------------------------------------------------------------

// Registry is a client of one discovery/configuration backend.
type Registry interface {
	// Register publishes a provider address.
	Register(ctx context.Context, url address.URL) error

	// Unregister withdraws a previously published address.
	Unregister(ctx context.Context, url address.URL) error
}

// RegistryFactory opens registry clients for backend addresses. Registered
// as an extension per backend kind; selected by the "registry" parameter of
// the registry address.
type RegistryFactory interface {
	Open(url address.URL) (Registry, error)
}

// MetadataService persists published service definitions. Publication is
// best-effort: a missing backend is tolerated, malformed input is not.
type MetadataService interface {
	PublishServiceDefinition(ctx context.Context, url address.URL) error
}

// -----------------------------------------------------------------------------
// Infrastructure ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers (security tokens, event ids).
type IDGenerator interface {
	New() string
}
