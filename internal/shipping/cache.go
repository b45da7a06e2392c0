package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRates is the rates computed for one package, keyed by its hash.
type CachedRates struct {
	Hash  string `json:"hash"`
	Rates []Rate `json:"rates"`
}

// SessionCache stores computed package rates per session and package index.
// Get returns ok=false on a miss.
type SessionCache interface {
	Get(ctx context.Context, sessionID string, index int) (CachedRates, bool, error)
	Set(ctx context.Context, sessionID string, index int, rates CachedRates) error
}

// SessionKey is the cache key of package index in a session.
func SessionKey(sessionID string, index int) string {
	return fmt.Sprintf("shipping:session:%s:%d", sessionID, index)
}

// MemorySessionCache keeps rates in process memory.
type MemorySessionCache struct {
	mu      sync.RWMutex
	entries map[string]CachedRates
}

// NewMemorySessionCache returns an empty cache.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{entries: map[string]CachedRates{}}
}

func (c *MemorySessionCache) Get(_ context.Context, sessionID string, index int) (CachedRates, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[SessionKey(sessionID, index)]
	return v, ok, nil
}

func (c *MemorySessionCache) Set(_ context.Context, sessionID string, index int, rates CachedRates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[SessionKey(sessionID, index)] = rates
	return nil
}

// RedisSessionCache stores rates as JSON in Redis with a TTL.
type RedisSessionCache struct {
	R   redis.UniversalClient
	TTL time.Duration
}

func (c RedisSessionCache) Get(ctx context.Context, sessionID string, index int) (CachedRates, bool, error) {
	raw, err := c.R.Get(ctx, SessionKey(sessionID, index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedRates{}, false, nil
	}
	if err != nil {
		return CachedRates{}, false, err
	}
	var out CachedRates
	if err := json.Unmarshal(raw, &out); err != nil {
		return CachedRates{}, false, err
	}
	return out, true, nil
}

func (c RedisSessionCache) Set(ctx context.Context, sessionID string, index int, rates CachedRates) error {
	raw, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return c.R.Set(ctx, SessionKey(sessionID, index), raw, ttl).Err()
}

// Purge drops every cached session entry and reports how many keys went.
// Entries are already invalidated by the settings version in their hash;
// purging only reclaims memory after a settings change.
func (c RedisSessionCache) Purge(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.R.Scan(ctx, cursor, "shipping:session:*", 500).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.R.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
