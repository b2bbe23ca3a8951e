package wrapper_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/adapters/wrapper"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/domain/service"
	"github.com/artpar/rpcgate/ports"
)

type passProtocol struct {
	failExport bool
}

func (p *passProtocol) DefaultPort() int { return 7 }

func (p *passProtocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	if p.failExport {
		return nil, errors.New("export refused")
	}
	return &passExporter{invoker: inv}, nil
}

type passExporter struct {
	invoker ports.Invoker
}

func (e *passExporter) Invoker() ports.Invoker { return e.invoker }
func (e *passExporter) Unexport() error        { return nil }

type okInvoker struct {
	url address.URL
}

func (i *okInvoker) URL() address.URL        { return i.url }
func (i *okInvoker) Interface() reflect.Type { return nil }
func (i *okInvoker) Invoke(ctx context.Context, inv ports.Invocation) ports.Result {
	return ports.Result{Value: "ok"}
}

func TestFilterEnforcesToken(t *testing.T) {
	p := wrapper.NewFilter(&passProtocol{}, zerolog.Nop())
	url := address.MustParse("demo://h:1/Guarded?token=secret")

	exp, err := p.Export(&okInvoker{url: url})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	inv := exp.Invoker()

	res := inv.Invoke(context.Background(), ports.Invocation{Method: "m"})
	var tokenErr *wrapper.TokenError
	if !errors.As(res.Err, &tokenErr) {
		t.Fatalf("missing token should fail, got %v", res.Err)
	}

	res = inv.Invoke(context.Background(), ports.Invocation{
		Method:      "m",
		Attachments: map[string]string{"token": "wrong"},
	})
	if !errors.As(res.Err, &tokenErr) {
		t.Fatalf("wrong token should fail, got %v", res.Err)
	}

	res = inv.Invoke(context.Background(), ports.Invocation{
		Method:      "m",
		Attachments: map[string]string{"token": "secret"},
	})
	if res.Err != nil || res.Value != "ok" {
		t.Errorf("valid token should pass, got %v / %v", res.Value, res.Err)
	}
}

func TestFilterSkipsUntokenedServices(t *testing.T) {
	p := wrapper.NewFilter(&passProtocol{}, zerolog.Nop())
	url := address.MustParse("demo://h:1/Open")

	exp, err := p.Export(&okInvoker{url: url})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	res := exp.Invoker().Invoke(context.Background(), ports.Invocation{Method: "m"})
	if res.Err != nil {
		t.Errorf("untokened service should not be guarded: %v", res.Err)
	}
}

func TestListenerPassesThroughResults(t *testing.T) {
	p := wrapper.NewListener(&passProtocol{}, zerolog.Nop())
	url := address.MustParse("demo://h:1/Watched")

	exp, err := p.Export(&okInvoker{url: url})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !exp.Invoker().URL().Equal(url) {
		t.Error("listener must not change the invoker")
	}
	if err := exp.Unexport(); err != nil {
		t.Errorf("Unexport: %v", err)
	}

	failing := wrapper.NewListener(&passProtocol{failExport: true}, zerolog.Nop())
	if _, err := failing.Export(&okInvoker{url: url}); err == nil {
		t.Error("listener must propagate export failure")
	}
}

type pingService interface {
	Ping() string
}

// describedInvoker carries its service descriptor, the way pipeline-built
// invokers do.
type describedInvoker struct {
	okInvoker
	descriptor *service.Descriptor
}

func (i *describedInvoker) Descriptor() *service.Descriptor { return i.descriptor }

func TestListenerLogsServiceIdentity(t *testing.T) {
	d, err := service.Describe(reflect.TypeOf((*pingService)(nil)).Elem(), "PingService", "g1", "1.0.0")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	var buf bytes.Buffer
	p := wrapper.NewListener(&passProtocol{}, zerolog.New(&buf))
	inv := &describedInvoker{
		okInvoker:  okInvoker{url: address.MustParse("demo://h:1/PingService")},
		descriptor: d,
	}
	if _, err := p.Export(inv); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), "g1/PingService:1.0.0") {
		t.Errorf("export log should carry the service key, got %s", buf.String())
	}
}

func TestWrappersKeepDefaultPort(t *testing.T) {
	inner := &passProtocol{}
	if got := wrapper.NewFilter(inner, zerolog.Nop()).DefaultPort(); got != 7 {
		t.Errorf("filter DefaultPort = %d", got)
	}
	if got := wrapper.NewListener(inner, zerolog.Nop()).DefaultPort(); got != 7 {
		t.Errorf("listener DefaultPort = %d", got)
	}
}
