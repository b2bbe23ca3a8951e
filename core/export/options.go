package export

import (
	"reflect"
	"time"

	"github.com/artpar/rpcgate/domain/address"
)

// ProtocolOptions configures one transport an export targets. A service may
// target several protocols at once; each produces independent exporters.
type ProtocolOptions struct {
	// Name selects the protocol extension; DefaultProtocolName when empty.
	Name string

	// Host and Port override the resolution chains; zero values fall
	// through to the next source.
	Host string
	Port int

	// ContextPath is prefixed to the service path on the export address.
	ContextPath string

	// Params are protocol-specific address parameters.
	Params map[string]string
}

// ProviderOptions are shared defaults applied beneath every service's own
// settings.
type ProviderOptions struct {
	Host   string
	Port   int
	Token  string
	Params map[string]string
}

// ArgumentOptions annotates one method argument. Index is the parameter
// position, nil when only the type is given; Type is the Go type string
// (e.g. "string"). At least one of the two must be set.
type ArgumentOptions struct {
	Index    *int
	Type     string
	Callback bool
	Params   map[string]string
}

// MethodOptions overrides settings for one method, by wire name.
type MethodOptions struct {
	Name      string
	Params    map[string]string
	Arguments []ArgumentOptions
}

// Options is the full configuration of one service export.
type Options struct {
	// Interface is the service interface type. Required unless Generic.
	Interface reflect.Type

	// Ref is the implementation being exported.
	Ref any

	// Name is the interface identity; derived from Interface when empty.
	// Required for generic exports.
	Name string

	Group   string
	Version string

	// Path is the address path; defaults to Name.
	Path string

	// Local and Stub name in-process implementation types that must
	// satisfy Interface; validated at export time.
	Local reflect.Type
	Stub  reflect.Type

	// Generic bypasses method enumeration; Ref must implement
	// ports.GenericService.
	Generic bool

	// Disabled is the guard condition: a disabled service never exports.
	Disabled bool

	// Delay defers the export onto the shared scheduler.
	Delay time.Duration

	// Token configures the security token: "" inherits the provider
	// default, "true"/"default" generates a random token, anything else
	// is used verbatim.
	Token string

	// Scope is "", "none", "local" or "remote".
	Scope string

	// MetadataType keys the metadata store the export address is
	// published to.
	MetadataType string

	// Monitor is an optional monitor address attached to remote exports.
	Monitor *address.URL

	// Application and Module metadata parameter overlays.
	Application map[string]string
	Module      map[string]string

	// Params are service-level address parameters.
	Params map[string]string

	Methods   []MethodOptions
	Protocols []ProtocolOptions

	// Registries are the discovery backend addresses remote exports fan
	// out over.
	Registries []address.URL

	// Provider carries shared defaults.
	Provider *ProviderOptions
}
