// Package secrets provides a memoized per-process secret cache. Secret
// storage itself is external; the cache only guarantees one fetch per name
// per process, plus a Clear affordance for rotation tests.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Fetcher resolves one named secret.
type Fetcher func(ctx context.Context, name string) (string, error)

// Cache memoizes secret lookups.
type Cache struct {
	mu     sync.Mutex
	fetch  Fetcher
	values map[string]string
}

// New creates a cache around fetch. A nil fetch falls back to EnvFetcher.
func New(fetch Fetcher) *Cache {
	if fetch == nil {
		fetch = EnvFetcher
	}
	return &Cache{fetch: fetch, values: make(map[string]string)}
}

// Get returns the named secret, fetching it at most once per process.
func (c *Cache) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[name]; ok {
		return v, nil
	}
	v, err := c.fetch(ctx, name)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", name, err)
	}
	c.values[name] = v
	return v, nil
}

// Clear drops all memoized values so the next Get re-fetches.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.values = make(map[string]string)
	c.mu.Unlock()
}

// EnvFetcher resolves a secret from the environment, mapping the name to an
// upper-snake env var ("db/credentials" -> "DB_CREDENTIALS").
func EnvFetcher(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ":", "_").Replace(name))
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("env var %s not set", key)
	}
	return v, nil
}
