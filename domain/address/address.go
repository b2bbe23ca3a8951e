// Package address defines the URL value used as the universal currency of
// the export layer: an immutable endpoint descriptor that doubles as a typed
// configuration carrier and as the selector for adaptive extension dispatch.
package address

import (
	"fmt"
	"net"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
)

// URL is an immutable scheme+host+port+path+parameters descriptor.
// All mutating operations return a new value; the zero URL is empty but usable.
type URL struct {
	scheme string
	host   string
	port   int
	path   string
	params map[string]string
}

// New creates a URL. The params map is copied; nil is treated as empty.
func New(scheme, host string, port int, path string, params map[string]string) URL {
	return URL{
		scheme: scheme,
		host:   host,
		port:   port,
		path:   strings.TrimPrefix(path, "/"),
		params: copyParams(params),
	}
}

// Parse decodes the canonical string form produced by String.
// Parameter values are percent-decoded; a value may itself be an encoded URL.
func Parse(s string) (URL, error) {
	raw, err := neturl.Parse(s)
	if err != nil {
		return URL{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	if raw.Scheme == "" {
		return URL{}, fmt.Errorf("parse address %q: missing scheme", s)
	}

	port := 0
	if p := raw.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return URL{}, fmt.Errorf("parse address %q: invalid port: %w", s, err)
		}
	}

	params := make(map[string]string)
	query, err := neturl.ParseQuery(raw.RawQuery)
	if err != nil {
		return URL{}, fmt.Errorf("parse address %q: invalid query: %w", s, err)
	}
	for k, vs := range query {
		if len(vs) > 0 {
			params[k] = vs[len(vs)-1]
		}
	}

	return URL{
		scheme: raw.Scheme,
		host:   raw.Hostname(),
		port:   port,
		path:   strings.TrimPrefix(raw.Path, "/"),
		params: params,
	}, nil
}

// MustParse is Parse for statically known addresses; it panics on error.
func MustParse(s string) URL {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Scheme returns the protocol scheme.
func (u URL) Scheme() string { return u.scheme }

// Host returns the host without port.
func (u URL) Host() string { return u.host }

// Port returns the port, zero when unset.
func (u URL) Port() int { return u.port }

// Path returns the path without a leading slash.
func (u URL) Path() string { return u.path }

// Authority returns "host:port", or just the host when the port is zero.
func (u URL) Authority() string {
	if u.port <= 0 {
		return u.host
	}
	return net.JoinHostPort(u.host, strconv.Itoa(u.port))
}

// Param returns a parameter value, empty when absent. Use HasParam to
// distinguish an empty value from a missing one.
func (u URL) Param(key string) string {
	return u.params[key]
}

// ParamOr returns a parameter value, or def when absent or empty.
func (u URL) ParamOr(key, def string) string {
	if v, ok := u.params[key]; ok && v != "" {
		return v
	}
	return def
}

// BoolParam interprets a parameter as a boolean, returning def when absent.
func (u URL) BoolParam(key string, def bool) bool {
	v, ok := u.params[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// IntParam interprets a parameter as an integer, returning def when absent
// or malformed.
func (u URL) IntParam(key string, def int) int {
	v, ok := u.params[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EncodedParam returns the raw value of a parameter carrying a nested URL
// in its encoded string form. Callers pass the result to Parse.
func (u URL) EncodedParam(key string) string {
	return u.params[key]
}

// Params returns a copy of the full parameter map.
func (u URL) Params() map[string]string {
	return copyParams(u.params)
}

// HasParam reports whether a parameter is present, even if empty.
func (u URL) HasParam(key string) bool {
	_, ok := u.params[key]
	return ok
}

// WithScheme returns a copy with the scheme replaced.
func (u URL) WithScheme(scheme string) URL {
	c := u.clone()
	c.scheme = scheme
	return c
}

// WithHost returns a copy with the host replaced.
func (u URL) WithHost(host string) URL {
	c := u.clone()
	c.host = host
	return c
}

// WithPort returns a copy with the port replaced.
func (u URL) WithPort(port int) URL {
	c := u.clone()
	c.port = port
	return c
}

// WithPath returns a copy with the path replaced.
func (u URL) WithPath(path string) URL {
	c := u.clone()
	c.path = strings.TrimPrefix(path, "/")
	return c
}

// WithParam returns a copy with one parameter set.
func (u URL) WithParam(key, value string) URL {
	c := u.clone()
	c.params[key] = value
	return c
}

// WithParams returns a copy with every given parameter set.
func (u URL) WithParams(params map[string]string) URL {
	c := u.clone()
	for k, v := range params {
		c.params[k] = v
	}
	return c
}

// WithParamIfAbsent returns a copy with the parameter set only when it is
// currently absent or empty, and the new value is non-empty.
func (u URL) WithParamIfAbsent(key, value string) URL {
	if value == "" {
		return u
	}
	if v, ok := u.params[key]; ok && v != "" {
		return u
	}
	return u.WithParam(key, value)
}

// WithEncodedParam embeds another URL under key in its encoded string form.
func (u URL) WithEncodedParam(key string, nested URL) URL {
	return u.WithParam(key, nested.String())
}

// WithoutParam returns a copy with the parameter removed.
func (u URL) WithoutParam(key string) URL {
	c := u.clone()
	delete(c.params, key)
	return c
}

// Equal reports structural equality: scheme, host, port, path and the full
// parameter map must match.
func (u URL) Equal(o URL) bool {
	if u.scheme != o.scheme || u.host != o.host || u.port != o.port || u.path != o.path {
		return false
	}
	if len(u.params) != len(o.params) {
		return false
	}
	for k, v := range u.params {
		if ov, ok := o.params[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String renders the canonical form scheme://host[:port]/path?k=v&...
// Parameters are sorted by key and percent-encoded, so the output is
// deterministic and Parse(u.String()) is structurally equal to u.
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.host)
	if u.port > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.port))
	}
	b.WriteByte('/')
	b.WriteString(u.path)
	if len(u.params) > 0 {
		b.WriteByte('?')
		keys := make([]string, 0, len(u.params))
		for k := range u.params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(neturl.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(neturl.QueryEscape(u.params[k]))
		}
	}
	return b.String()
}

func (u URL) clone() URL {
	return URL{
		scheme: u.scheme,
		host:   u.host,
		port:   u.port,
		path:   u.path,
		params: copyParams(u.params),
	}
}

func copyParams(params map[string]string) map[string]string {
	c := make(map[string]string, len(params))
	for k, v := range params {
		c[k] = v
	}
	return c
}
