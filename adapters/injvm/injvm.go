// Package injvm is the in-process transport: exports are retained in a
// table keyed by service path so same-process callers can invoke without
// touching the network.
package injvm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/ports"
)

// Protocol is the in-process transport.
type Protocol struct {
	mu       sync.RWMutex
	services map[string]*exporter
	logger   zerolog.Logger
}

// New creates the in-process transport.
func New(logger zerolog.Logger) *Protocol {
	return &Protocol{
		services: make(map[string]*exporter),
		logger:   logger.With().Str("component", "injvm").Logger(),
	}
}

// DefaultPort is zero: in-process exports bind nothing.
func (p *Protocol) DefaultPort() int { return 0 }

// Export retains the invoker under its address path. A later export of the
// same path replaces the earlier entry.
func (p *Protocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	key := inv.URL().Path()
	p.mu.Lock()
	defer p.mu.Unlock()
	e := &exporter{protocol: p, key: key, invoker: inv}
	p.services[key] = e
	p.logger.Debug().Str("service", key).Msg("exported in-process")
	return e, nil
}

// Invoke calls an in-process exported service directly.
func (p *Protocol) Invoke(ctx context.Context, path string, inv ports.Invocation) (ports.Result, error) {
	p.mu.RLock()
	e, ok := p.services[path]
	p.mu.RUnlock()
	if !ok {
		return ports.Result{}, fmt.Errorf("injvm: service %q not exported", path)
	}
	return e.invoker.Invoke(ctx, inv), nil
}

// Exported reports whether a service path is currently exported.
func (p *Protocol) Exported(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.services[path]
	return ok
}

type exporter struct {
	protocol *Protocol
	key      string
	invoker  ports.Invoker

	mu   sync.Mutex
	done bool
}

func (e *exporter) Invoker() ports.Invoker { return e.invoker }

// Unexport removes the service from the table. Safe to call repeatedly.
func (e *exporter) Unexport() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	e.done = true
	e.protocol.mu.Lock()
	// A replaced entry must not tear down its successor.
	if e.protocol.services[e.key] == e {
		delete(e.protocol.services, e.key)
	}
	e.protocol.mu.Unlock()
	return nil
}
