package fetcher

import (
	"golang.org/x/sync/singleflight"
)

type Group[V any] struct {
	g singleflight.Group
}

func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error, bool) {
	v, err, shared := g.g.Do(key, func() (interface{}, error) {
		return fn()
	})
	out, _ := v.(V)
	return out, err, shared
}
