// Package wrapper holds the decorators composed around every transport:
// a token guard on incoming calls and an export lifecycle listener.
package wrapper

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/core/export"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// Wrapper priorities. Lower values end up outermost.
const (
	FilterPriority   = 100
	ListenerPriority = 200
)

// TokenError is returned to callers that present a missing or wrong token.
type TokenError struct {
	Service string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid or missing token for service %q", e.Service)
}

// FilterProtocol guards exported invokers with the per-service token.
type FilterProtocol struct {
	inner  ports.Protocol
	logger zerolog.Logger
}

// NewFilter wraps a transport with the token filter.
func NewFilter(inner ports.Protocol, logger zerolog.Logger) *FilterProtocol {
	return &FilterProtocol{inner: inner, logger: logger.With().Str("component", "token-filter").Logger()}
}

func (p *FilterProtocol) DefaultPort() int { return p.inner.DefaultPort() }

func (p *FilterProtocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	token := inv.URL().Param(export.TokenKey)
	if token == "" {
		return p.inner.Export(inv)
	}
	return p.inner.Export(&tokenInvoker{Invoker: inv, token: token})
}

type tokenInvoker struct {
	ports.Invoker
	token string
}

func (i *tokenInvoker) Invoke(ctx context.Context, inv ports.Invocation) ports.Result {
	if inv.Attachments[export.TokenKey] != i.token {
		return ports.Result{Err: &TokenError{Service: i.URL().Path()}}
	}
	return i.Invoker.Invoke(ctx, inv)
}

// ListenerProtocol logs export and unexport transitions.
type ListenerProtocol struct {
	inner  ports.Protocol
	logger zerolog.Logger
}

// NewListener wraps a transport with lifecycle logging.
func NewListener(inner ports.Protocol, logger zerolog.Logger) *ListenerProtocol {
	return &ListenerProtocol{inner: inner, logger: logger.With().Str("component", "export-listener").Logger()}
}

func (p *ListenerProtocol) DefaultPort() int { return p.inner.DefaultPort() }

func (p *ListenerProtocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	url := inv.URL()
	log := p.logger.With().Str("url", url.String()).Logger()
	if di, ok := inv.(export.DescribedInvoker); ok {
		log = log.With().Str("service", di.Descriptor().Key()).Logger()
	}
	exporter, err := p.inner.Export(inv)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		return nil, err
	}
	log.Info().Msg("exported")
	return &listenedExporter{Exporter: exporter, url: url, logger: p.logger}, nil
}

type listenedExporter struct {
	ports.Exporter
	url    address.URL
	logger zerolog.Logger
}

func (e *listenedExporter) Unexport() error {
	err := e.Exporter.Unexport()
	if err != nil {
		e.logger.Warn().Err(err).Str("url", e.url.String()).Msg("unexport failed")
		return err
	}
	e.logger.Info().Str("url", e.url.String()).Msg("unexported")
	return nil
}
