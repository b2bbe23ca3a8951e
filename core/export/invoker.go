package export

import (
	"context"
	"reflect"

	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/domain/service"
	"github.com/artpar/rpcgate/ports"
)

// providerInvoker decorates the proxy-built invoker with the service
// descriptor, so downstream layers (transports, filters, metadata) can see
// what they are serving without re-deriving it.
type providerInvoker struct {
	ports.Invoker
	descriptor *service.Descriptor
}

// Descriptor returns the exported service's descriptor.
func (p providerInvoker) Descriptor() *service.Descriptor { return p.descriptor }

// DescribedInvoker is implemented by invokers that carry their service
// descriptor.
type DescribedInvoker interface {
	ports.Invoker
	Descriptor() *service.Descriptor
}

var _ DescribedInvoker = providerInvoker{}

// rebasedInvoker presents an existing invoker under a different address.
// The registry-aware protocol uses it to re-export under the embedded
// export address.
type rebasedInvoker struct {
	inner ports.Invoker
	url   address.URL
}

// Rebase returns inv presented under url.
func Rebase(inv ports.Invoker, url address.URL) ports.Invoker {
	return rebasedInvoker{inner: inv, url: url}
}

func (r rebasedInvoker) URL() address.URL        { return r.url }
func (r rebasedInvoker) Interface() reflect.Type { return r.inner.Interface() }
func (r rebasedInvoker) Invoke(ctx context.Context, inv ports.Invocation) ports.Result {
	return r.inner.Invoke(ctx, inv)
}
