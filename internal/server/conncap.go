// Package server tracks admitted connections per source host so a single
// address cannot hold more than a fixed number of chat sessions.
package server

import (
	"net"
	"sync"
)

// ConnCap counts admitted, still-open connections per source host and
// rejects new ones beyond a fixed threshold. Unspecified hosts such as
// 0.0.0.0 are never admitted and never counted.
type ConnCap struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewConnCap creates a ConnCap that admits at most limit connections per host.
func NewConnCap(limit int) *ConnCap {
	if limit <= 0 {
		limit = defaultMaxConnsPerAddr
	}
	return &ConnCap{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Acquire reserves a slot for host and reports whether the connection may
// proceed to the handshake. Every successful Acquire must be paired with
// exactly one Release.
func (c *ConnCap) Acquire(host string) bool {
	if isUnspecifiedHost(host) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[host] >= c.limit {
		return false
	}
	c.counts[host]++
	return true
}

// Release frees a slot previously reserved by Acquire. Releasing a host with
// no slots is a no-op.
func (c *ConnCap) Release(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.counts[host]
	if !ok {
		return
	}
	if n <= 1 {
		delete(c.counts, host)
		return
	}
	c.counts[host] = n - 1
}

// Count returns the number of admitted connections currently held by host.
func (c *ConnCap) Count(host string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[host]
}

// Limit returns the per-host connection limit.
func (c *ConnCap) Limit() int {
	return c.limit
}

func isUnspecifiedHost(host string) bool {
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

// hostOf extracts the host part of a remote address, falling back to the
// whole string when it carries no port.
func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
