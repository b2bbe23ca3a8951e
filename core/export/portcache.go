package export

import (
	"fmt"
	"net"
	"strings"
	"sync"
)

// PortCache remembers the ephemeral port chosen for each protocol name so
// later exports of the same protocol reuse it. Reads and writes happen
// under one lock: two services exporting concurrently must not race to
// different ports for the same protocol.
type PortCache struct {
	mu    sync.Mutex
	ports map[string]int
}

// NewPortCache creates an empty cache.
func NewPortCache() *PortCache {
	return &PortCache{ports: make(map[string]int)}
}

// Get returns the cached port for a protocol name.
func (c *PortCache) Get(protocol string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ports[strings.ToLower(protocol)]
	return p, ok
}

// GetOrPut returns the cached port, or stores the result of probe and
// returns it. The probe runs under the lock so concurrent exports of the
// same protocol observe one consistent choice.
func (c *PortCache) GetOrPut(protocol string, probe func() (int, error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(protocol)
	if p, ok := c.ports[key]; ok {
		return p, nil
	}
	p, err := probe()
	if err != nil {
		return 0, err
	}
	c.ports[key] = p
	return p, nil
}

// probeAvailablePort asks the OS for a free TCP port, preferring ports at
// or above the hint when one is given.
func probeAvailablePort(hint int) (int, error) {
	if hint > 0 {
		for p := hint; p < hint+64 && p <= 65535; p++ {
			l, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
			if err != nil {
				continue
			}
			l.Close()
			return p, nil
		}
	}
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("probe available port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
