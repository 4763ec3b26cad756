package market

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/monitoring"
)

// Fingerprint derives the cache key for a logical request. The key is a pure
// function of the endpoint and the normalized parameter set: parameters are
// lower-cased and sorted by name, so equivalent requests always hit the same
// entry regardless of argument order at the call site.
func Fingerprint(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(strings.ToLower(k))
		b.WriteByte('=')
		b.WriteString(strings.ToLower(params[k]))
	}
	return b.String()
}

// NormalizeIDs sorts and lower-cases a set of provider ids so that the same
// set always fingerprints identically.
func NormalizeIDs(ids []string) string {
	normalized := make([]string, len(ids))
	for i, id := range ids {
		normalized[i] = strings.ToLower(strings.TrimSpace(id))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}

type entry struct {
	payload   interface{}
	fetchedAt time.Time
}

// hotSet is one immutable snapshot of the top instruments. A new snapshot is
// built fully off to the side and swapped in atomically, so readers never
// observe a partially written one.
type hotSet struct {
	quotes    []models.PriceQuote
	bySymbol  map[string]int
	updatedAt time.Time
}

// PriceCache is the keyed, TTL-bounded store in front of the upstream feed.
// Staleness is advisory: entries past their TTL remain servable as
// last-known-good until a newer fetch succeeds or the process restarts.
// Concurrent misses on the same fingerprint are collapsed into a single
// outbound fetch.
type PriceCache struct {
	ttl     time.Duration
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	entries map[string]entry

	flight singleflight.Group
	hot    atomic.Pointer[hotSet]
}

func NewPriceCache(ttl time.Duration, metrics *monitoring.Metrics) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		metrics: metrics,
		entries: make(map[string]entry),
	}
}

// Get returns the cached payload for a fingerprint along with whether it is
// still within TTL. ok is false when no entry exists at all.
func (c *PriceCache) Get(fingerprint string) (payload interface{}, fresh, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	return e.payload, time.Since(e.fetchedAt) < c.ttl, true
}

// Put stores a payload under a fingerprint with the current timestamp.
func (c *PriceCache) Put(fingerprint string, payload interface{}) {
	c.mu.Lock()
	c.entries[fingerprint] = entry{payload: payload, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// GetOrFetch returns the fresh cached payload if one exists, otherwise runs
// fetch under the per-fingerprint single-flight guard and caches the result.
// If the fetch fails and a stale entry exists, the stale entry is served as
// last-known-good instead of the error.
func (c *PriceCache) GetOrFetch(fingerprint string, fetch func() (interface{}, error)) (interface{}, error) {
	if payload, fresh, ok := c.Get(fingerprint); ok && fresh {
		c.observe("hit_fresh")
		return payload, nil
	}

	payload, err, _ := c.flight.Do(fingerprint, func() (interface{}, error) {
		// A waiter that lost the race may find the entry already
		// refreshed by the flight it was queued behind.
		if payload, fresh, ok := c.Get(fingerprint); ok && fresh {
			return payload, nil
		}
		payload, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Put(fingerprint, payload)
		return payload, nil
	})
	if err != nil {
		if stale, _, ok := c.Get(fingerprint); ok {
			c.observe("hit_stale")
			return stale, nil
		}
		c.observe("miss")
		return nil, err
	}
	c.observe("miss")
	return payload, nil
}

// SwapHotSet atomically replaces the hot set snapshot.
func (c *PriceCache) SwapHotSet(quotes []models.PriceQuote) {
	bySymbol := make(map[string]int, len(quotes))
	for i, q := range quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = i
	}
	snapshot := &hotSet{
		quotes:    quotes,
		bySymbol:  bySymbol,
		updatedAt: time.Now(),
	}
	c.hot.Store(snapshot)
	if c.metrics != nil {
		c.metrics.SetHotSet(len(quotes), snapshot.updatedAt)
	}
}

// HotSet returns the current snapshot, nil if it has never been populated.
// The returned slice is shared and must not be mutated.
func (c *PriceCache) HotSet() []models.PriceQuote {
	snapshot := c.hot.Load()
	if snapshot == nil {
		return nil
	}
	return snapshot.quotes
}

// HotSetPopulated reports whether an initial snapshot has landed. Before
// that, an empty hot set is not authoritative "no data" and callers must
// fetch on demand instead.
func (c *PriceCache) HotSetPopulated() bool {
	return c.hot.Load() != nil
}

// LookupSymbol finds a quote in the hot set by case-insensitive symbol.
func (c *PriceCache) LookupSymbol(symbol string) (models.PriceQuote, bool) {
	snapshot := c.hot.Load()
	if snapshot == nil {
		return models.PriceQuote{}, false
	}
	i, ok := snapshot.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return models.PriceQuote{}, false
	}
	return snapshot.quotes[i], true
}

func (c *PriceCache) observe(result string) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(result)
	}
}
