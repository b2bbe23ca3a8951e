// Package proxy provides the default ProxyFactory: invokers that dispatch
// to the service reference through reflection. Registered as the "reflect"
// extension of the proxy capability.
package proxy

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// Factory builds reflection-based invokers.
type Factory struct{}

// New creates the factory.
func New() *Factory { return &Factory{} }

// NewInvoker wraps ref into an invoker bound to url. Generic references
// (implementing ports.GenericService) bypass method resolution.
func (f *Factory) NewInvoker(ref any, iface reflect.Type, url address.URL) (ports.Invoker, error) {
	if ref == nil {
		return nil, fmt.Errorf("proxy: nil service reference for %s", url)
	}
	if g, ok := ref.(ports.GenericService); ok {
		return &genericInvoker{ref: g, iface: iface, url: url}, nil
	}
	if iface == nil {
		return nil, fmt.Errorf("proxy: nil interface type for %s", url)
	}
	if !reflect.TypeOf(ref).Implements(iface) {
		return nil, fmt.Errorf("proxy: %T does not implement %s", ref, iface)
	}
	return &reflectInvoker{ref: reflect.ValueOf(ref), iface: iface, url: url}, nil
}

type reflectInvoker struct {
	ref   reflect.Value
	iface reflect.Type
	url   address.URL
}

func (r *reflectInvoker) URL() address.URL        { return r.url }
func (r *reflectInvoker) Interface() reflect.Type { return r.iface }

// Invoke resolves the method by wire name (case-insensitive on the first
// rune), passes the context through when the method declares one, and maps
// a trailing error return onto the result.
func (r *reflectInvoker) Invoke(ctx context.Context, inv ports.Invocation) ports.Result {
	method := r.ref.MethodByName(upperFirst(inv.Method))
	if !method.IsValid() {
		method = r.ref.MethodByName(inv.Method)
	}
	if !method.IsValid() {
		return ports.Result{Err: fmt.Errorf("proxy: method %q not found on %s", inv.Method, r.iface)}
	}

	mt := method.Type()
	args := make([]reflect.Value, 0, mt.NumIn())
	next := 0
	for i := 0; i < mt.NumIn(); i++ {
		in := mt.In(i)
		if i == 0 && isContext(in) {
			args = append(args, reflect.ValueOf(ctx))
			continue
		}
		if next >= len(inv.Args) {
			return ports.Result{Err: fmt.Errorf("proxy: method %q wants %d args, got %d", inv.Method, mt.NumIn(), len(inv.Args))}
		}
		arg := inv.Args[next]
		next++
		if arg == nil {
			args = append(args, reflect.Zero(in))
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().AssignableTo(in) {
			if av.Type().ConvertibleTo(in) {
				av = av.Convert(in)
			} else {
				return ports.Result{Err: fmt.Errorf("proxy: arg %d of %q is %T, want %s", next-1, inv.Method, arg, in)}
			}
		}
		args = append(args, av)
	}
	if next < len(inv.Args) {
		return ports.Result{Err: fmt.Errorf("proxy: method %q takes %d args, got %d", inv.Method, next, len(inv.Args))}
	}

	out := method.Call(args)
	return resultFromOutputs(out)
}

type genericInvoker struct {
	ref   ports.GenericService
	iface reflect.Type
	url   address.URL
}

func (g *genericInvoker) URL() address.URL        { return g.url }
func (g *genericInvoker) Interface() reflect.Type { return g.iface }

func (g *genericInvoker) Invoke(ctx context.Context, inv ports.Invocation) ports.Result {
	v, err := g.ref.Invoke(ctx, inv.Method, inv.Args)
	return ports.Result{Value: v, Err: err}
}

func resultFromOutputs(out []reflect.Value) ports.Result {
	var res ports.Result
	if len(out) == 0 {
		return res
	}
	last := out[len(out)-1]
	if last.Type() == errType {
		if !last.IsNil() {
			res.Err = last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	switch len(out) {
	case 0:
	case 1:
		res.Value = out[0].Interface()
	default:
		values := make([]any, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		res.Value = values
	}
	return res
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func isContext(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.PkgPath() == "context" && t.Name() == "Context"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
