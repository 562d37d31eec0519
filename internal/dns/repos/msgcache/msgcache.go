// Package msgcache stores raw upstream response packets keyed by
// (name, type) until their expiry instant passes.
package msgcache

import (
	"sync"
	"time"

	"github.com/fwdns/fwdns/internal/dns/common/clock"
	"github.com/fwdns/fwdns/internal/dns/services/relay"
)

// entry is one cached response: the raw bytes exactly as received from the
// upstream resolver and the absolute instant they stop being valid.
type entry struct {
	raw       []byte
	expiresAt time.Time
}

// MsgCache is a coarse-lock map of cached responses. It grows without bound
// as distinct (name, type) pairs are queried; that is a documented limitation
// of the proxy, not an oversight. Expired entries are evicted lazily, on the
// read that finds them expired. There is no background sweeper.
type MsgCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]entry
}

// New returns an empty cache that evaluates expiry against the given clock.
func New(clk clock.Clock) *MsgCache {
	return &MsgCache{
		clock:   clk,
		entries: make(map[string]entry),
	}
}

// Lookup returns the cached raw response for key if one exists and has not
// expired. An expired entry is deleted inside the same critical section and
// reported absent. Callers must not mutate the returned slice; copy it before
// patching the transaction id.
func (c *MsgCache) Lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.raw, true
}

// Store caches raw under key until expiresAt, unconditionally replacing any
// existing entry (last writer wins).
func (c *MsgCache) Store(key string, raw []byte, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{raw: raw, expiresAt: expiresAt}
}

// Len returns the number of entries currently held, expired or not.
func (c *MsgCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ relay.Cache = (*MsgCache)(nil)
