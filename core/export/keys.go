package export

// Well-known address parameter keys and values shared between the pipeline
// and the protocol adapters.
const (
	SideKey      = "side"
	ProviderSide = "provider"

	InterfaceKey = "interface"
	GroupKey     = "group"
	VersionKey   = "version"
	MethodsKey   = "methods"
	RevisionKey  = "revision"
	GenericKey   = "generic"
	AnyValue     = "*"

	ScopeKey    = "scope"
	ScopeNone   = "none"
	ScopeLocal  = "local"
	ScopeRemote = "remote"

	TokenKey     = "token"
	DynamicKey   = "dynamic"
	MonitorKey   = "monitor"
	ProxyKey     = "proxy"
	ExportKey    = "export"
	RegisterKey  = "register"
	RegistryKey  = "registry"
	MetadataKey  = "metadata"
	MetadataNone = "none"

	BindIPKey   = "bind.ip"
	BindPortKey = "bind.port"
	AnyhostKey  = "anyhost"

	TimestampKey = "timestamp"
	PIDKey       = "pid"
	ReleaseKey   = "release"
)

// LocalProtocol is the in-process transport scheme.
const LocalProtocol = "injvm"

// LocalHost is the loopback host used for in-process exports.
const LocalHost = "127.0.0.1"

// DefaultProtocolName is used when a protocol configuration has no name.
const DefaultProtocolName = "http"

// Release is the framework release published on every export address.
const Release = "0.1.0"

// MulticastRegistry marks registry backends that cannot be probed over TCP
// during host discovery.
const MulticastRegistry = "multicast"
