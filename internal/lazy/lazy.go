// Package lazy memoizes expensive, fallible initializers by name.
//
// A Group hands out one value per key. The first Get for a key starts the
// load; every Get that arrives while it is in flight waits on the same
// attempt. A successful value is cached for the life of the Group. A failed
// attempt is forgotten, so the next Get starts over from scratch.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrPanic is wrapped by the error returned when a load function panics.
var ErrPanic = errors.New("load panicked")

// LoadFunc produces the value for a key.
//
// The context passed to a LoadFunc is detached from the caller that happened
// to trigger the load, so one waiter giving up does not fail the others.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Group caches values of type T by name. The zero value is ready to use.
type Group[T any] struct {
	flight singleflight.Group

	mu    sync.RWMutex
	ready map[string]T

	loads atomic.Int64
}

// Get returns the cached value for name, loading it with load if needed.
// Callers that give up (ctx done) stop waiting but do not cancel the load.
func (g *Group[T]) Get(ctx context.Context, name string, load LoadFunc[T]) (T, error) {
	if v, ok := g.cached(name); ok {
		return v, nil
	}

	ch := g.flight.DoChan(name, func() (any, error) {
		// A previous flight may have finished between cached() and DoChan.
		if v, ok := g.cached(name); ok {
			return v, nil
		}
		g.loads.Add(1)

		v, err := g.call(context.WithoutCancel(ctx), load)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		if g.ready == nil {
			g.ready = make(map[string]T)
		}
		g.ready[name] = v
		g.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// call runs load and converts a panic into an error. singleflight re-panics
// on a separate goroutine, which would take the whole process down.
func (g *Group[T]) call(ctx context.Context, load LoadFunc[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return load(ctx)
}

func (g *Group[T]) cached(name string) (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.ready[name]
	return v, ok
}

// Ready reports whether name has a cached value.
func (g *Group[T]) Ready(name string) bool {
	_, ok := g.cached(name)
	return ok
}

// Loads returns how many load attempts have been started across all keys.
func (g *Group[T]) Loads() int64 {
	return g.loads.Load()
}

// Values returns a snapshot of every cached value.
func (g *Group[T]) Values() []T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]T, 0, len(g.ready))
	for _, v := range g.ready {
		out = append(out, v)
	}
	return out
}
