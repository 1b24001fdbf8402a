package fingerprint

import (
	"context"
	"sync"
	"time"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// AdmitOutcome is the result of offering a fingerprint to the Cache for
// verification.
type AdmitOutcome int

const (
	// Fresh means the caller is the first to admit this fingerprint and
	// owns the in-flight verification; it must call Commit or Abort when
	// done.
	Fresh AdmitOutcome = iota
	// Join means another caller already owns an in-flight verification for
	// this fingerprint; the caller should Wait on it instead of running its
	// own.
	Join
	// Hit means a non-expired cached VerificationRecord already exists for
	// this fingerprint; no verification is needed.
	Hit
)

type cacheEntry struct {
	record    model.VerificationRecord
	expiresAt time.Time
}

// Cache is the at-most-once-per-fingerprint admission cache (C1). Eviction
// is access-order LRU with lazy TTL expiry: expired entries are reclaimed
// the next time they are looked up or admitted, rather than by a background
// sweep, mirroring the account cache it is grounded on. When the cache is
// over capacity the least-recently-used entry is evicted, whether or not it
// has expired.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	clk      clock.Clock

	entries map[[32]byte]*cacheEntry
	order   [][32]byte // least-recently-used first

	inflight map[[32]byte]chan struct{}
}

// NewCache builds a Cache with the given capacity and TTL.
func NewCache(capacity int, ttl time.Duration, clk clock.Clock) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		clk:      clk,
		entries:  make(map[[32]byte]*cacheEntry),
		inflight: make(map[[32]byte]chan struct{}),
	}
}

// Lookup returns the cached VerificationRecord for fp, if present and not
// expired.
func (c *Cache) Lookup(fp [32]byte) (model.VerificationRecord, bool) {
	c.mu.RLock()
	e, ok := c.entries[fp]
	c.mu.RUnlock()
	if !ok {
		return model.VerificationRecord{}, false
	}
	if c.ttl > 0 && c.clk.Now().After(e.expiresAt) {
		c.mu.Lock()
		c.evictLocked(fp)
		c.mu.Unlock()
		return model.VerificationRecord{}, false
	}

	c.mu.Lock()
	c.touchLocked(fp)
	c.mu.Unlock()
	return e.record, true
}

// Admit offers fp for verification. Exactly one caller among any number of
// concurrent Admit calls for the same fingerprint receives Fresh; the rest
// receive Join (or Hit, if a result already landed) and must call Wait.
func (c *Cache) Admit(fp [32]byte) AdmitOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fp]; ok {
		if c.ttl == 0 || !c.clk.Now().After(e.expiresAt) {
			c.touchLocked(fp)
			return Hit
		}
		c.evictLocked(fp)
	}

	if _, ok := c.inflight[fp]; ok {
		return Join
	}

	c.inflight[fp] = make(chan struct{})
	return Fresh
}

// Wait blocks until the in-flight verification owning fp completes, then
// returns its result. Returns false if ctx is cancelled first or no result
// was ever committed (the owner aborted).
func (c *Cache) Wait(ctx context.Context, fp [32]byte) (model.VerificationRecord, bool) {
	c.mu.RLock()
	ch, ok := c.inflight[fp]
	c.mu.RUnlock()
	if !ok {
		return c.Lookup(fp)
	}

	select {
	case <-ch:
		return c.Lookup(fp)
	case <-ctx.Done():
		return model.VerificationRecord{}, false
	}
}

// Commit stores record under fp, evicting the least-recently-used entry if
// the cache is over capacity, and releases any callers waiting on this
// fingerprint's in-flight verification.
func (c *Cache) Commit(fp [32]byte, record model.VerificationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clk.Now().Add(c.ttl)
	}
	c.entries[fp] = &cacheEntry{record: record, expiresAt: expiresAt}
	c.touchLocked(fp)

	for len(c.order) > c.capacity {
		c.evictLocked(c.order[0])
	}

	c.releaseInflightLocked(fp)
}

// Abort releases any callers waiting on fp's in-flight verification without
// storing a result, allowing the next Admit call to become the new owner.
func (c *Cache) Abort(fp [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseInflightLocked(fp)
}

func (c *Cache) releaseInflightLocked(fp [32]byte) {
	if ch, ok := c.inflight[fp]; ok {
		close(ch)
		delete(c.inflight, fp)
	}
}

// touchLocked and evictLocked require c.mu to be held for writing: both
// mutate c.order, so even Lookup's hit path takes the write lock to call
// touchLocked.
func (c *Cache) touchLocked(fp [32]byte) {
	for i, k := range c.order {
		if k == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, fp)
}

func (c *Cache) evictLocked(fp [32]byte) {
	delete(c.entries, fp)
	for i, k := range c.order {
		if k == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
