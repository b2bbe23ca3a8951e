package proxy_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/rpcgate/adapters/proxy"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

type calculator interface {
	Add(a, b int) int
	Divide(ctx context.Context, a, b float64) (float64, error)
}

type calcImpl struct{}

func (calcImpl) Add(a, b int) int { return a + b }

func (calcImpl) Divide(ctx context.Context, a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

var calcType = reflect.TypeOf((*calculator)(nil)).Elem()

func newCalcInvoker(t *testing.T) ports.Invoker {
	t.Helper()
	url := address.MustParse("http://127.0.0.1:8080/Calculator")
	inv, err := proxy.New().NewInvoker(calcImpl{}, calcType, url)
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	return inv
}

func TestInvokeByWireName(t *testing.T) {
	inv := newCalcInvoker(t)

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "add", Args: []any{2, 3}})
	if res.Err != nil {
		t.Fatalf("Invoke: %v", res.Err)
	}
	if res.Value != 5 {
		t.Errorf("add(2,3) = %v, want 5", res.Value)
	}
}

func TestInvokeContextAndError(t *testing.T) {
	inv := newCalcInvoker(t)

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "divide", Args: []any{6.0, 2.0}})
	if res.Err != nil {
		t.Fatalf("Invoke: %v", res.Err)
	}
	if res.Value != 3.0 {
		t.Errorf("divide(6,2) = %v, want 3", res.Value)
	}

	res = inv.Invoke(context.Background(), ports.Invocation{Method: "divide", Args: []any{6.0, 0.0}})
	if res.Err == nil || res.Err.Error() != "division by zero" {
		t.Errorf("expected division by zero error, got %v", res.Err)
	}
}

func TestInvokeConvertsArgs(t *testing.T) {
	inv := newCalcInvoker(t)

	// JSON decoding produces float64 for numbers.
	res := inv.Invoke(context.Background(), ports.Invocation{Method: "add", Args: []any{float64(2), float64(3)}})
	if res.Err != nil {
		t.Fatalf("Invoke: %v", res.Err)
	}
	if res.Value != 5 {
		t.Errorf("add = %v, want 5", res.Value)
	}
}

func TestInvokeUnknownMethod(t *testing.T) {
	inv := newCalcInvoker(t)

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "subtract"})
	if res.Err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestInvokeArgCountMismatch(t *testing.T) {
	inv := newCalcInvoker(t)

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "add", Args: []any{1}})
	if res.Err == nil {
		t.Error("expected error for missing arg")
	}
	res = inv.Invoke(context.Background(), ports.Invocation{Method: "add", Args: []any{1, 2, 3}})
	if res.Err == nil {
		t.Error("expected error for extra arg")
	}
}

func TestNewInvokerRejectsWrongRef(t *testing.T) {
	url := address.MustParse("http://127.0.0.1:8080/Calculator")
	if _, err := proxy.New().NewInvoker(struct{}{}, calcType, url); err == nil {
		t.Error("expected error for ref not implementing interface")
	}
	if _, err := proxy.New().NewInvoker(nil, calcType, url); err == nil {
		t.Error("expected error for nil ref")
	}
}

type genericEcho struct{}

func (genericEcho) Invoke(ctx context.Context, method string, args []any) (any, error) {
	return map[string]any{"method": method, "args": args}, nil
}

func TestGenericInvoker(t *testing.T) {
	url := address.MustParse("http://127.0.0.1:8080/GenericEcho?generic=true")
	inv, err := proxy.New().NewInvoker(genericEcho{}, nil, url)
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "anything", Args: []any{"x"}})
	if res.Err != nil {
		t.Fatalf("Invoke: %v", res.Err)
	}
	m, ok := res.Value.(map[string]any)
	if !ok || m["method"] != "anything" {
		t.Errorf("unexpected generic result: %#v", res.Value)
	}
}
