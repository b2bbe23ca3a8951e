package memregistry_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/adapters/memregistry"
	"github.com/artpar/rpcgate/domain/address"
)

func TestRegisterUnregister(t *testing.T) {
	f := memregistry.NewFactory(zerolog.Nop())
	reg, err := f.Open(address.MustParse("registry://local:2181"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mem := reg.(*memregistry.Registry)

	url := address.MustParse("demo://10.0.0.1:9000/Echo?side=provider")
	if err := reg.Register(context.Background(), url); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !mem.Has(url) {
		t.Error("address should be registered")
	}

	// Same address twice keeps one entry.
	if err := reg.Register(context.Background(), url); err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if got := len(mem.Registered()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}

	if err := reg.Unregister(context.Background(), url); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if mem.Has(url) {
		t.Error("address should be gone")
	}
	// Unknown address is ignored.
	if err := reg.Unregister(context.Background(), url); err != nil {
		t.Errorf("Unregister unknown: %v", err)
	}
}

func TestSameAuthoritySharesRegistry(t *testing.T) {
	f := memregistry.NewFactory(zerolog.Nop())

	a, _ := f.Open(address.MustParse("registry://shared:2181"))
	b, _ := f.Open(address.MustParse("registry://shared:2181?registry=memory"))
	c, _ := f.Open(address.MustParse("registry://other:2181"))

	if a != b {
		t.Error("same authority should share one registry")
	}
	if a == c {
		t.Error("different authorities should get distinct registries")
	}
}

func TestCancelledContext(t *testing.T) {
	f := memregistry.NewFactory(zerolog.Nop())
	reg, _ := f.Open(address.MustParse("registry://local:2181"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := reg.Register(ctx, address.MustParse("demo://h:1/S")); err == nil {
		t.Error("expected context error")
	}
}
