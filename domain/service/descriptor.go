// Package service defines the service descriptor model: the reflective
// description of an exported interface and the process-wide repository that
// shares descriptors across repeated exports of the same service triple.
package service

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Method is one method signature of a service interface.
type Method struct {
	// Name is the Go method name.
	Name string

	// WireName is the name used on addresses and invocations: the Go name
	// with its first rune lowered.
	WireName string

	// ParamTypes are the declared parameter types, excluding a leading
	// context.Context when present.
	ParamTypes []reflect.Type
}

// Descriptor describes one exportable service interface. Descriptors are
// built once per interface+group+version and shared.
type Descriptor struct {
	// Interface is the service interface type.
	Interface reflect.Type

	// Name is the interface identity, e.g. "demo.Echo".
	Name string

	// Group and Version scope the service key.
	Group, Version string

	// Methods are the reflectively enumerated method signatures.
	Methods []Method
}

// Describe builds a descriptor for an interface type.
func Describe(iface reflect.Type, name, group, version string) (*Descriptor, error) {
	if iface == nil {
		return nil, fmt.Errorf("service interface type is nil")
	}
	if iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("service type %s is not an interface", iface)
	}
	if name == "" {
		name = InterfaceName(iface)
	}

	d := &Descriptor{
		Interface: iface,
		Name:      name,
		Group:     group,
		Version:   version,
	}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		var params []reflect.Type
		for j := 0; j < m.Type.NumIn(); j++ {
			in := m.Type.In(j)
			if j == 0 && isContext(in) {
				continue
			}
			params = append(params, in)
		}
		d.Methods = append(d.Methods, Method{
			Name:       m.Name,
			WireName:   lowerFirst(m.Name),
			ParamTypes: params,
		})
	}
	sort.Slice(d.Methods, func(i, j int) bool { return d.Methods[i].Name < d.Methods[j].Name })
	return d, nil
}

// Key returns the unique service key: [group/]name[:version].
func (d *Descriptor) Key() string {
	return Key(d.Name, d.Group, d.Version)
}

// Method looks a method up by its Go or wire name.
func (d *Descriptor) Method(name string) (Method, bool) {
	for _, m := range d.Methods {
		if m.Name == name || m.WireName == name {
			return m, true
		}
	}
	return Method{}, false
}

// WireNames returns the wire-level method names, sorted.
func (d *Descriptor) WireNames() []string {
	names := make([]string, len(d.Methods))
	for i, m := range d.Methods {
		names[i] = m.WireName
	}
	return names
}

// Revision returns a short digest over the method set, published as the
// "revision" parameter so consumers can detect signature drift.
func (d *Descriptor) Revision() string {
	h, _ := blake2b.New256(nil)
	for _, m := range d.Methods {
		h.Write([]byte(m.Name))
		for _, p := range m.ParamTypes {
			h.Write([]byte{'('})
			h.Write([]byte(p.String()))
		}
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Key builds the unique service key for a name/group/version triple.
func Key(name, group, version string) string {
	var b strings.Builder
	if group != "" {
		b.WriteString(group)
		b.WriteByte('/')
	}
	b.WriteString(name)
	if version != "" {
		b.WriteByte(':')
		b.WriteString(version)
	}
	return b.String()
}

// InterfaceName derives the default interface identity from a type.
func InterfaceName(iface reflect.Type) string {
	if pkg := iface.PkgPath(); pkg != "" {
		if i := strings.LastIndex(pkg, "/"); i >= 0 {
			pkg = pkg[i+1:]
		}
		return pkg + "." + iface.Name()
	}
	return iface.Name()
}

// Implements reports whether impl satisfies the service interface. impl may
// be a concrete or pointer type.
func Implements(iface, impl reflect.Type) bool {
	if impl == nil {
		return false
	}
	if impl.Implements(iface) {
		return true
	}
	if impl.Kind() != reflect.Pointer {
		return reflect.PointerTo(impl).Implements(iface)
	}
	return false
}

func isContext(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.PkgPath() == "context" && t.Name() == "Context"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
