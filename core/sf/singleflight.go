// Package sf wraps golang.org/x/sync/singleflight with a typed API.
package sf

import "golang.org/x/sync/singleflight"

// Group deduplicates concurrent calls that share a key. While a call for a
// key is in flight, further callers block and receive the same result
// instead of executing fn again.
type Group[T any] struct {
	group singleflight.Group
}

// Do executes fn for key, deduplicating concurrent callers. fn runs at most
// once per key at any given time.
func (g *Group[T]) Do(key string, fn func() (T, error)) (T, error) {
	v, err, _ := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
