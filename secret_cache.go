package accounts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// DefaultSecretTTL is how long a fetched secret is reused before the next
// Get goes back to the origin.
const DefaultSecretTTL = 5 * time.Minute

type secretCacheEntry struct {
	value     json.RawMessage
	fetchedAt time.Time
}

// SecretCache is a TTL cache over a SecretSource. Concurrent Get calls for
// the same key collapse into one origin fetch; distinct keys fetch
// independently. Failed fetches leave no entry behind.
//
// The zero value is not usable; construct instances with NewSecretCache and
// inject them wherever a signing key or connection secret is needed.
type SecretCache struct {
	source SecretSource
	ttl    time.Duration
	clock  func() time.Time
	logger Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]secretCacheEntry
}

type SecretCacheOption func(*SecretCache)

// WithSecretTTL overrides the default 5 minute entry lifetime
func WithSecretTTL(ttl time.Duration) SecretCacheOption {
	return func(c *SecretCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSecretClock overrides the time source, used by tests to age entries
func WithSecretClock(clock func() time.Time) SecretCacheOption {
	return func(c *SecretCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithSecretCacheLogger(logger Logger) SecretCacheOption {
	return func(c *SecretCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSecretCache creates a cache over the given origin
func NewSecretCache(source SecretSource, opts ...SecretCacheOption) *SecretCache {
	c := &SecretCache{
		source:  source,
		ttl:     DefaultSecretTTL,
		clock:   time.Now,
		logger:  defLogger{},
		entries: map[string]secretCacheEntry{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Get returns the secret blob for key, fetching from the origin when the
// cache has no fresh entry. Callers waiting on the same key share a single
// in-flight fetch and all receive its result.
func (c *SecretCache) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if value, ok := c.fresh(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		// a fetch that completed while we queued on the flight lock is
		// still fresh, reuse it
		if value, ok := c.fresh(key); ok {
			return value, nil
		}

		raw, err := c.source.FetchSecret(ctx, key)
		if err != nil {
			return nil, NewFetchError(key, err)
		}

		c.mu.Lock()
		c.entries[key] = secretCacheEntry{value: raw, fetchedAt: c.clock()}
		c.mu.Unlock()

		c.logger.Debug("secret cache populated entry %q", key)

		return raw, nil
	})

	if err != nil {
		return nil, err
	}

	return value.(json.RawMessage), nil
}

// Clear drops every cached entry, e.g. after a secret rotation. In-flight
// fetches complete normally and repopulate their entry with the value they
// fetched.
func (c *SecretCache) Clear() {
	c.mu.Lock()
	c.entries = map[string]secretCacheEntry{}
	c.mu.Unlock()
}

// Len reports the number of cached entries, fresh or stale
func (c *SecretCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SecretCache) fresh(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.clock().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}

	return entry.value, true
}

type jwtSecretBlob struct {
	JWTSecret string `json:"jwt_secret"`
}

// JWTSecret fetches the signing secret blob and extracts the jwt_secret
// field. The secret name defaults to DefaultSigningSecretName.
func (c *SecretCache) JWTSecret(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		name = DefaultSigningSecretName
	}

	raw, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	blob := jwtSecretBlob{}
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, NewFetchError(name, err)
	}

	if blob.JWTSecret == "" {
		return nil, NewFetchError(name, errors.New("secret blob is missing jwt_secret", errors.CategoryInternal))
	}

	return []byte(blob.JWTSecret), nil
}
