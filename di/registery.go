package di

import (
	"fmt"
	"sync"
)

// Resolver looks up services by key.
//
// It is intentionally:
// - read-only
// - side effect free from the caller's point of view
//
// ok=false with a nil error means "not registered". A non-nil error means the
// key is registered but producing the value failed.
//
// Expected usage:
//
//	val, ok, err := r.Resolve(di.Key("some.key"))
type Resolver interface {
	Resolve(key DependencyKey) (val any, ok bool, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(key DependencyKey) (any, bool, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(key DependencyKey) (any, bool, error) { return f(key) }

// MapRegistry is a simple in-memory resolver of pre-built values.
//
// It is the usual way for a host to hand shared singletons (config, logger,
// clients) to extensions before the service container exists.
type MapRegistry struct {
	mu    sync.RWMutex
	items map[DependencyKey]any
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{items: map[DependencyKey]any{}}
}

// Provide stores a value under a key and returns the registry for chaining.
func (r *MapRegistry) Provide(key DependencyKey, val any) *MapRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = val
	return r
}

// Resolve implements Resolver and defensively converts panics into errors.
func (r *MapRegistry) Resolve(key DependencyKey) (val any, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			ok = false
			err = fmt.Errorf("%w: %v", ErrResolverPanic, rec)
		}
	}()

	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok, nil
}

// Get returns the value if present (no panic).
func (r *MapRegistry) Get(key DependencyKey) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// MustGet returns the value or panics with a helpful message.
// Useful in examples/tests where missing registry keys should fail fast.
func (r *MapRegistry) MustGet(key DependencyKey) any {
	v, ok := r.Get(key)
	if !ok {
		panic(fmt.Errorf("di: registry missing key %q", string(key)))
	}
	return v
}

// Len reports how many values are stored.
func (r *MapRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Chain returns a Resolver that asks each resolver in order and returns the
// first hit. Errors stop the lookup. Nil resolvers are skipped.
func Chain(resolvers ...Resolver) Resolver {
	rs := make([]Resolver, 0, len(resolvers))
	for _, r := range resolvers {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return ResolverFunc(func(key DependencyKey) (any, bool, error) {
		for _, r := range rs {
			v, ok, err := r.Resolve(key)
			if err != nil {
				return nil, false, err
			}
			if ok {
				return v, true, nil
			}
		}
		return nil, false, nil
	})
}
