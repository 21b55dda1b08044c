package di

import (
	"fmt"
	"sort"
	"sync"
)

// Container is the finalized Resolver built from a Collection.
//
// It is safe for concurrent use. Singleton factories may run more than once if
// two goroutines race on the first Resolve of the same key; only the first
// result is cached and returned to both.
type Container struct {
	index  map[DependencyKey]Descriptor
	parent Resolver

	mu    sync.Mutex
	cache map[DependencyKey]any
}

// BuildOption configures Build.
type BuildOption func(*Container)

// WithParent makes the container fall back to parent for keys it does not know.
func WithParent(parent Resolver) BuildOption {
	return func(c *Container) { c.parent = parent }
}

// Build snapshots the collection into a Container. Later changes to the
// collection do not affect the container.
func (c *Collection) Build(opts ...BuildOption) *Container {
	ds := c.Descriptors()
	ct := &Container{
		index: make(map[DependencyKey]Descriptor, len(ds)),
		cache: make(map[DependencyKey]any),
	}
	for _, d := range ds {
		ct.index[d.Key] = d
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ct)
		}
	}
	return ct
}

// Resolve implements Resolver.
func (c *Container) Resolve(key DependencyKey) (any, bool, error) {
	return c.resolve(key, nil)
}

// Has reports whether key is registered locally or in the parent chain.
// It does not build anything locally, but asks the parent via Resolve.
func (c *Container) Has(key DependencyKey) bool {
	if _, ok := c.index[key]; ok {
		return true
	}
	if c.parent == nil {
		return false
	}
	_, ok, err := c.parent.Resolve(key)
	return ok && err == nil
}

// Keys returns the locally registered keys, sorted.
func (c *Container) Keys() []DependencyKey {
	out := make([]DependencyKey, 0, len(c.index))
	for k := range c.index {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Container) resolve(key DependencyKey, chain []DependencyKey) (any, bool, error) {
	for _, k := range chain {
		if k == key {
			cycle := append(append([]DependencyKey{}, chain...), key)
			return nil, false, CircularDependencyError{Chain: cycle}
		}
	}

	d, ok := c.index[key]
	if !ok {
		if c.parent == nil {
			return nil, false, nil
		}
		return c.parent.Resolve(key)
	}

	if d.Factory == nil {
		if d.Instance != nil {
			return d.Instance, true, nil
		}
		return nil, false, FactoryError{Key: key, Err: ErrNilFactory}
	}

	if d.Lifetime == Singleton {
		c.mu.Lock()
		v, cached := c.cache[key]
		c.mu.Unlock()
		if cached {
			return v, true, nil
		}
	}

	next := append(chain[:len(chain):len(chain)], key)
	v, err := c.build(d, next)
	if err != nil {
		return nil, false, err
	}

	if d.Lifetime == Singleton {
		c.mu.Lock()
		if existing, cached := c.cache[key]; cached {
			v = existing
		} else {
			c.cache[key] = v
		}
		c.mu.Unlock()
	}
	return v, true, nil
}

// build invokes the factory and converts panics into errors.
func (c *Container) build(d Descriptor, chain []DependencyKey) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v = nil
			err = FactoryError{Key: d.Key, Err: fmt.Errorf("%w: %v", ErrResolverPanic, rec)}
		}
	}()

	v, err = d.Factory(chainResolver{c: c, chain: chain})
	if err != nil {
		return nil, FactoryError{Key: d.Key, Err: err}
	}
	return v, nil
}

// chainResolver is handed to factories so nested lookups can detect cycles.
type chainResolver struct {
	c     *Container
	chain []DependencyKey
}

func (r chainResolver) Resolve(key DependencyKey) (any, bool, error) {
	return r.c.resolve(key, r.chain)
}
