package export

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/rpcgate/core/capability"
	"github.com/artpar/rpcgate/domain/address"
)

// Environment override keys. Each is consulted first with the upper-cased
// protocol name prefixed (e.g. HTTP_RPCGATE_IP_TO_BIND), then plain.
const (
	EnvIPToBind       = "RPCGATE_IP_TO_BIND"
	EnvPortToBind     = "RPCGATE_PORT_TO_BIND"
	EnvIPToRegistry   = "RPCGATE_IP_TO_REGISTRY"
	EnvPortToRegistry = "RPCGATE_PORT_TO_REGISTRY"
)

const registryProbeTimeout = time.Second

// findConfiguredHost resolves the bind host and the registry-advertised
// host for one protocol. The bind host is recorded in params; the registry
// host (equal to the bind host unless overridden) is returned.
//
// Priority: protocol-prefixed env override, plain env override, protocol
// config host, provider default host, local DNS lookup, a TCP probe against
// each non-multicast registry, best-guess local interface.
func (s *Service) findConfiguredHost(pc ProtocolOptions, registries []address.URL, params map[string]string) (string, error) {
	anyhost := false

	hostToBind := s.envValue(pc.Name, EnvIPToBind)
	if hostToBind != "" && isInvalidLocalHost(hostToBind) {
		return "", configErrorf("invalid bind host %q from %s", hostToBind, EnvIPToBind)
	}

	if hostToBind == "" {
		hostToBind = pc.Host
		if hostToBind == "" && s.opts.Provider != nil {
			hostToBind = s.opts.Provider.Host
		}
		// An unusable configured host falls through the chain; only
		// explicit env overrides are fatal when invalid.
		if isInvalidLocalHost(hostToBind) {
			anyhost = true
			s.deps.Logger.Info().Str("protocol", pc.Name).Msg("no valid host configured, trying DNS")
			if h, err := s.deps.LookupHost(); err == nil {
				hostToBind = h
			} else {
				s.deps.Logger.Warn().Err(err).Msg("local DNS lookup failed")
			}
			if isInvalidLocalHost(hostToBind) {
				hostToBind = s.hostFromRegistryProbe(registries)
			}
			if isInvalidLocalHost(hostToBind) {
				hostToBind = bestGuessLocalHost()
			}
		}
	}

	params[BindIPKey] = hostToBind
	params[AnyhostKey] = strconv.FormatBool(anyhost)

	hostToRegistry := s.envValue(pc.Name, EnvIPToRegistry)
	if hostToRegistry != "" && isInvalidLocalHost(hostToRegistry) {
		return "", configErrorf("invalid registry host %q from %s", hostToRegistry, EnvIPToRegistry)
	}
	if hostToRegistry == "" {
		hostToRegistry = hostToBind
	}
	return hostToRegistry, nil
}

// hostFromRegistryProbe learns the locally routable interface by connecting
// to each registry in turn.
func (s *Service) hostFromRegistryProbe(registries []address.URL) string {
	for _, reg := range registries {
		if strings.EqualFold(reg.ParamOr(RegistryKey, ""), MulticastRegistry) {
			continue
		}
		host, err := s.deps.ProbeRegistry(reg.Host(), reg.Port(), registryProbeTimeout)
		if err != nil {
			s.deps.Logger.Warn().Err(err).Str("registry", reg.Authority()).Msg("registry probe failed")
			continue
		}
		if !isInvalidLocalHost(host) {
			return host
		}
	}
	return ""
}

// findConfiguredPort resolves the bind port and the registry-advertised
// port for one protocol. The bind port is recorded in params; the registry
// port is returned.
//
// Priority: protocol-prefixed env override, plain env override, protocol
// config port, provider default port, transport default port, the process
// cache of previously probed ports, a fresh OS probe (then cached).
func (s *Service) findConfiguredPort(pc ProtocolOptions, name string, params map[string]string) (int, error) {
	portToBind, err := parsePort(s.envValue(name, EnvPortToBind))
	if err != nil {
		return 0, err
	}

	if portToBind == 0 {
		portToBind = pc.Port
		if portToBind == 0 && s.opts.Provider != nil {
			portToBind = s.opts.Provider.Port
		}
		protocol, err := capability.GetProtocol(s.deps.Extensions, name)
		if err != nil {
			return 0, err
		}
		defaultPort := protocol.DefaultPort()
		if portToBind == 0 {
			portToBind = defaultPort
		}
		if portToBind <= 0 {
			portToBind, err = s.deps.Ports.GetOrPut(name, func() (int, error) {
				p, err := s.deps.ProbePort(defaultPort)
				if err == nil {
					s.deps.Logger.Warn().Int("port", p).Str("protocol", name).Msg("using random available port")
				}
				return p, err
			})
			if err != nil {
				return 0, configErrorf("no available port for protocol %q: %v", name, err)
			}
		}
	}

	params[BindPortKey] = strconv.Itoa(portToBind)

	portToRegistry, err := parsePort(s.envValue(name, EnvPortToRegistry))
	if err != nil {
		return 0, err
	}
	if portToRegistry == 0 {
		portToRegistry = portToBind
	}
	return portToRegistry, nil
}

func (s *Service) envValue(protocolName, key string) string {
	if protocolName != "" {
		if v := s.deps.Env(strings.ToUpper(protocolName) + "_" + key); v != "" {
			return v
		}
	}
	return s.deps.Env(key)
}

func parsePort(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return 0, configErrorf("invalid port override %q", v)
	}
	return p, nil
}

// isInvalidLocalHost reports hosts that cannot be advertised: empty,
// localhost names and loopback/any addresses.
func isInvalidLocalHost(host string) bool {
	return host == "" ||
		strings.EqualFold(host, "localhost") ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.")
}

// lookupLocalDNS resolves the machine hostname to an address.
func lookupLocalDNS() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", err
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if !isInvalidLocalHost(a) {
			return a, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}
	return "", nil
}

// probeRegistry opens a short-lived TCP connection to learn which local
// interface routes to the registry.
func probeRegistry(host string, port int, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	local, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", err
	}
	return local, nil
}

// bestGuessLocalHost scans the interfaces for a global unicast address,
// falling back to loopback.
func bestGuessLocalHost() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.String()
		}
	}
	return LocalHost
}
