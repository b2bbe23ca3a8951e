package idgen_test

import (
	"regexp"
	"testing"

	"github.com/artpar/rpcgate/adapters/idgen"
)

func TestUUIDFormat(t *testing.T) {
	g := idgen.UUID{}
	id := g.New()

	v4 := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !v4.MatchString(id) {
		t.Errorf("token %q is not a v4 UUID", id)
	}

	if g.New() == id {
		t.Error("tokens should be unique")
	}
}

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("tok-")
	if id := g.New(); id != "tok-1" {
		t.Errorf("first = %q, want tok-1", id)
	}
	if id := g.New(); id != "tok-2" {
		t.Errorf("second = %q, want tok-2", id)
	}
	g.Reset()
	if id := g.New(); id != "tok-1" {
		t.Errorf("after reset = %q, want tok-1", id)
	}
}
