// Package httprpc is the HTTP/JSON transport. One listener is shared per
// bind address; each exported service mounts a POST route under its path
// that decodes a JSON call envelope and dispatches it to the invoker.
package httprpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/ports"
)

// DefaultPort is the transport default when no port is configured.
const DefaultPort = 8080

// callEnvelope is the wire form of one request.
type callEnvelope struct {
	Method      string            `json:"method"`
	Args        []json.RawMessage `json:"args"`
	Attachments map[string]string `json:"attachments,omitempty"`
}

// replyEnvelope is the wire form of one response.
type replyEnvelope struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Protocol serves exported invokers over HTTP.
type Protocol struct {
	mu      sync.Mutex
	servers map[string]*server
	logger  zerolog.Logger
}

// New creates the HTTP transport.
func New(logger zerolog.Logger) *Protocol {
	return &Protocol{
		servers: make(map[string]*server),
		logger:  logger.With().Str("component", "httprpc").Logger(),
	}
}

// DefaultPort returns the transport default port.
func (p *Protocol) DefaultPort() int { return DefaultPort }

// Export mounts the invoker on the (possibly shared) listener for its bind
// address. The bind host/port are taken from the bind.ip/bind.port
// parameters, falling back to the address authority.
func (p *Protocol) Export(inv ports.Invoker) (ports.Exporter, error) {
	url := inv.URL()
	host := url.ParamOr("bind.ip", url.Host())
	port := url.IntParam("bind.port", url.Port())
	bind := net.JoinHostPort(host, strconv.Itoa(port))

	p.mu.Lock()
	defer p.mu.Unlock()

	srv, ok := p.servers[bind]
	if !ok {
		var err error
		srv, err = newServer(bind, p.logger)
		if err != nil {
			return nil, err
		}
		p.servers[bind] = srv
	}

	route := "/" + url.Path()
	if err := srv.mount(route, inv); err != nil {
		if srv.empty() {
			srv.close()
			delete(p.servers, bind)
		}
		return nil, err
	}
	srv.refs++
	p.logger.Info().Str("bind", bind).Str("route", route).Msg("exported over http")

	return &exporter{protocol: p, bind: bind, route: route, invoker: inv}, nil
}

type exporter struct {
	protocol *Protocol
	bind     string
	route    string
	invoker  ports.Invoker

	mu   sync.Mutex
	done bool
}

func (e *exporter) Invoker() ports.Invoker { return e.invoker }

// Unexport unmounts the route and closes the listener when it was the last
// service on it.
func (e *exporter) Unexport() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	e.done = true

	e.protocol.mu.Lock()
	defer e.protocol.mu.Unlock()
	srv, ok := e.protocol.servers[e.bind]
	if !ok {
		return nil
	}
	srv.unmount(e.route)
	srv.refs--
	if srv.refs <= 0 {
		delete(e.protocol.servers, e.bind)
		return srv.close()
	}
	return nil
}

// server is one shared HTTP listener.
type server struct {
	listener net.Listener
	http     *http.Server
	logger   zerolog.Logger
	refs     int

	mu     sync.RWMutex
	routes map[string]ports.Invoker
}

func newServer(bind string, logger zerolog.Logger) (*server, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("httprpc: listen %s: %w", bind, err)
	}

	s := &server{
		listener: listener,
		logger:   logger,
		routes:   make(map[string]ports.Invoker),
	}

	r := chi.NewRouter()
	r.Post("/*", s.handle)
	s.http = &http.Server{
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("bind", bind).Msg("http server stopped")
		}
	}()
	return s, nil
}

func (s *server) mount(route string, inv ports.Invoker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.routes[route]; exists {
		return fmt.Errorf("httprpc: route %q already exported", route)
	}
	s.routes[route] = inv
	return nil
}

func (s *server) unmount(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, route)
}

func (s *server) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes) == 0
}

func (s *server) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	inv, ok := s.routes[r.URL.Path]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	var call callEnvelope
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, "malformed call envelope", http.StatusBadRequest)
		return
	}

	args := make([]any, len(call.Args))
	for i, raw := range call.Args {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			http.Error(w, "malformed argument", http.StatusBadRequest)
			return
		}
		args[i] = v
	}

	result := inv.Invoke(r.Context(), ports.Invocation{
		Method:      call.Method,
		Args:        args,
		Attachments: call.Attachments,
	})

	reply := replyEnvelope{Value: result.Value}
	status := http.StatusOK
	if result.Err != nil {
		reply.Error = result.Err.Error()
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		s.logger.Warn().Err(err).Msg("encode reply failed")
	}
}

// Addr returns the live listen address of the server bound for url, for
// tests and introspection.
func (p *Protocol) Addr(url address.URL) (string, bool) {
	host := url.ParamOr("bind.ip", url.Host())
	port := url.IntParam("bind.port", url.Port())
	bind := net.JoinHostPort(host, strconv.Itoa(port))
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[bind]
	if !ok {
		return "", false
	}
	return srv.listener.Addr().String(), true
}
