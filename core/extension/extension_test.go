package extension

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/artpar/rpcgate/domain/address"
)

const capGreeter Capability = "greeter"

type greeter interface {
	Greet() string
}

type plainGreeter struct{ name string }

func (g plainGreeter) Greet() string { return g.name }

type wrappedGreeter struct {
	inner greeter
	tag   string
}

func (w wrappedGreeter) Greet() string { return w.tag + "(" + w.inner.Greet() + ")" }

func greeterFactory(name string) Factory {
	return func(*Registry) (any, error) { return plainGreeter{name: name}, nil }
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(capGreeter, "en", greeterFactory("hello")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := r.Register(capGreeter, "en", greeterFactory("hi"))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("second Register() error = %v, want DuplicateError", err)
	}
	if dup.Name != "en" || dup.Capability != capGreeter {
		t.Errorf("DuplicateError = %+v", dup)
	}
}

func TestReplace_Permitted(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "en", greeterFactory("hello"))
	r.Replace(capGreeter, "en", greeterFactory("howdy"))
	v, err := r.Get(capGreeter, "en")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := v.(greeter).Greet(); got != "howdy" {
		t.Errorf("Greet() = %s, want howdy", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "en", greeterFactory("hello"))
	_, err := r.Get(capGreeter, "fr")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Get() error = %v, want NotFoundError", err)
	}
	if len(nf.Registered) != 1 || nf.Registered[0] != "en" {
		t.Errorf("Registered = %v, want [en]", nf.Registered)
	}
}

func TestGet_SingletonCached(t *testing.T) {
	r := NewRegistry()
	built := 0
	r.Replace(capGreeter, "en", func(*Registry) (any, error) {
		built++
		return plainGreeter{name: "hello"}, nil
	})
	a, _ := r.Get(capGreeter, "en")
	b, _ := r.Get(capGreeter, "en")
	if built != 1 {
		t.Errorf("factory ran %d times, want 1", built)
	}
	if a != b {
		t.Error("Get() should return the cached singleton")
	}
}

func TestGet_ConcurrentFirstAccess(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	built := 0
	r.Replace(capGreeter, "en", func(*Registry) (any, error) {
		mu.Lock()
		built++
		mu.Unlock()
		return plainGreeter{name: "hello"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Get(capGreeter, "en"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if built != 1 {
		t.Errorf("factory ran %d times under concurrency, want 1", built)
	}
}

func TestGet_FactoryDependencyInjection(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "en", greeterFactory("hello"))
	r.Replace(capGreeter, "echoing", func(reg *Registry) (any, error) {
		base, err := reg.Get(capGreeter, "en")
		if err != nil {
			return nil, err
		}
		return wrappedGreeter{inner: base.(greeter), tag: "echo"}, nil
	})
	v, err := r.Get(capGreeter, "echoing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := v.(greeter).Greet(); got != "echo(hello)" {
		t.Errorf("Greet() = %s", got)
	}
}

func TestWrappers_OrderedComposition(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "en", greeterFactory("hello"))
	// Lower priority wraps outermost: filter(listener(impl)).
	r.RegisterWrapper(capGreeter, "listener", 200, func(_ *Registry, inner any) any {
		return wrappedGreeter{inner: inner.(greeter), tag: "listener"}
	})
	r.RegisterWrapper(capGreeter, "filter", 100, func(_ *Registry, inner any) any {
		return wrappedGreeter{inner: inner.(greeter), tag: "filter"}
	})

	v, err := r.Get(capGreeter, "en")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := v.(greeter).Greet(); got != "filter(listener(hello))" {
		t.Errorf("Greet() = %s, want filter(listener(hello))", got)
	}
}

func TestGet_FactoryError(t *testing.T) {
	r := NewRegistry()
	boom := fmt.Errorf("boom")
	r.Replace(capGreeter, "bad", func(*Registry) (any, error) { return nil, boom })
	if _, err := r.Get(capGreeter, "bad"); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want boom", err)
	}
	// Error is sticky: the factory does not run again.
	if _, err := r.Get(capGreeter, "bad"); !errors.Is(err, boom) {
		t.Errorf("second Get() error = %v, want boom", err)
	}
}

func TestAdaptive_CandidateKeys(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "d", greeterFactory("default"))
	r.Replace(capGreeter, "foo", greeterFactory("foo"))
	r.RegisterAdaptive(capGreeter, []string{"p1", "p2"}, "d", false)

	a, err := r.Adaptive(capGreeter)
	if err != nil {
		t.Fatalf("Adaptive() error = %v", err)
	}

	// p2 present: resolves to foo.
	u := address.New("any", "h", 1, "", map[string]string{"p2": "foo"})
	v, err := a.Resolve(u)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := v.(greeter).Greet(); got != "foo" {
		t.Errorf("Resolve(p2=foo) = %s, want foo", got)
	}

	// p1 takes precedence over p2.
	u = address.New("any", "h", 1, "", map[string]string{"p1": "d", "p2": "foo"})
	if name := a.ResolveName(u); name != "d" {
		t.Errorf("ResolveName(p1=d,p2=foo) = %s, want d", name)
	}

	// Neither key present: default.
	u = address.New("any", "h", 1, "", nil)
	v, err = a.Resolve(u)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := v.(greeter).Greet(); got != "default" {
		t.Errorf("Resolve(default) = %s, want default", got)
	}

	// Unregistered resolved name fails.
	u = address.New("any", "h", 1, "", map[string]string{"p1": "missing"})
	_, err = a.Resolve(u)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve(missing) error = %v, want ResolutionError", err)
	}
	if re.Name != "missing" {
		t.Errorf("ResolutionError.Name = %s, want missing", re.Name)
	}
}

func TestAdaptive_SchemeDispatch(t *testing.T) {
	r := NewRegistry()
	r.Replace(capGreeter, "rpc", greeterFactory("rpc"))
	r.RegisterAdaptive(capGreeter, nil, "rpc", true)

	a, _ := r.Adaptive(capGreeter)
	u := address.New("rpc", "h", 1, "", map[string]string{"p1": "ignored"})
	if name := a.ResolveName(u); name != "rpc" {
		t.Errorf("ResolveName() = %s, want rpc (scheme)", name)
	}
}

func TestAdaptive_SingleProxyPerCapability(t *testing.T) {
	r := NewRegistry()
	r.RegisterAdaptive(capGreeter, nil, "d", false)
	a, _ := r.Adaptive(capGreeter)
	b, _ := r.Adaptive(capGreeter)
	if a != b {
		t.Error("Adaptive() should cache one proxy per capability")
	}

	if _, err := r.Adaptive(Capability("undeclared")); err == nil {
		t.Error("Adaptive() should fail for a capability without a declared spec")
	}
}
