// Package fetcher memoizes per-key lookups and tracks per-server cooldowns
// for the clients that talk to Puppet.
package fetcher

import (
	"context"
	"fmt"
)

// LoadFunc produces the value for key. It is called at most once per key
// among concurrent callers, and never again once it has succeeded.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

type Loader[V any] struct {
	load  LoadFunc[V]
	group Group[V]
	cache *Cache[V]
}

func NewLoader[V any](load LoadFunc[V]) *Loader[V] {
	return &Loader[V]{
		load:  load,
		cache: NewCache[V](),
	}
}

// Get returns the cached value for key, loading it if needed. Failed loads
// are not cached.
func (l *Loader[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	if ctx == nil {
		return zero, fmt.Errorf("Get: nil context")
	}
	if l == nil || l.load == nil {
		return zero, fmt.Errorf("Get: nil Loader (use NewLoader)")
	}
	if l.cache == nil {
		return zero, fmt.Errorf("Get: nil cache (use NewLoader)")
	}
	if key == "" {
		return zero, fmt.Errorf("Get: empty key")
	}

	if val, ok := l.cache.Get(key); ok {
		return val, nil
	}

	val, err, _ := l.group.Do(key, func() (V, error) {
		return l.load(ctx, key)
	})
	if err != nil {
		return zero, err
	}

	l.cache.Set(key, val)
	return val, nil
}
