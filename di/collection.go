package di

import "sync"

// Lifetime controls how often a Container invokes a descriptor's factory.
type Lifetime int

const (
	// Singleton services are built once per Container and cached.
	Singleton Lifetime = iota

	// Transient services are built on every Resolve.
	Transient
)

// String implements fmt.Stringer.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Factory builds a service. It receives the resolver of the container that is
// building it, so it can pull its own dependencies.
type Factory func(r Resolver) (any, error)

// Descriptor describes one registered service.
//
// Exactly one of Factory and Instance is expected to be set. Instance
// descriptors are always singletons.
type Descriptor struct {
	Key      DependencyKey
	Lifetime Lifetime
	Factory  Factory
	Instance any
}

// Collection is the mutable service list extensions configure.
//
// Registering the same key twice keeps both descriptors; the last one wins
// when the Container resolves the key. Use TryAdd* to register only when the
// key is still free.
//
// Collection is safe for concurrent use, though bootstrap normally drives it
// from a single goroutine.
type Collection struct {
	mu          sync.RWMutex
	descriptors []Descriptor
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends a descriptor and returns the collection for chaining.
func (c *Collection) Add(d Descriptor) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = append(c.descriptors, d)
	return c
}

// AddSingleton registers a factory that is invoked once per Container.
func (c *Collection) AddSingleton(key DependencyKey, f Factory) *Collection {
	return c.Add(Descriptor{Key: key, Lifetime: Singleton, Factory: f})
}

// AddTransient registers a factory that is invoked on every Resolve.
func (c *Collection) AddTransient(key DependencyKey, f Factory) *Collection {
	return c.Add(Descriptor{Key: key, Lifetime: Transient, Factory: f})
}

// AddInstance registers an already built value.
func (c *Collection) AddInstance(key DependencyKey, v any) *Collection {
	return c.Add(Descriptor{Key: key, Lifetime: Singleton, Instance: v})
}

// TryAdd appends d only if nothing is registered under d.Key yet.
// It reports whether the descriptor was added.
func (c *Collection) TryAdd(d Descriptor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.descriptors {
		if existing.Key == d.Key {
			return false
		}
	}
	c.descriptors = append(c.descriptors, d)
	return true
}

// TryAddSingleton is AddSingleton guarded by TryAdd.
func (c *Collection) TryAddSingleton(key DependencyKey, f Factory) bool {
	return c.TryAdd(Descriptor{Key: key, Lifetime: Singleton, Factory: f})
}

// TryAddTransient is AddTransient guarded by TryAdd.
func (c *Collection) TryAddTransient(key DependencyKey, f Factory) bool {
	return c.TryAdd(Descriptor{Key: key, Lifetime: Transient, Factory: f})
}

// TryAddInstance is AddInstance guarded by TryAdd.
func (c *Collection) TryAddInstance(key DependencyKey, v any) bool {
	return c.TryAdd(Descriptor{Key: key, Lifetime: Singleton, Instance: v})
}

// Has reports whether at least one descriptor is registered under key.
func (c *Collection) Has(key DependencyKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.descriptors {
		if d.Key == key {
			return true
		}
	}
	return false
}

// Len returns the number of descriptors, duplicates included.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.descriptors)
}

// Descriptors returns a copy of the registered descriptors in registration order.
func (c *Collection) Descriptors() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Provide registers a typed factory under KeyOf[T].
func Provide[T any](c *Collection, lifetime Lifetime, f func(r Resolver) (T, error)) *Collection {
	return c.Add(Descriptor{
		Key:      KeyOf[T](),
		Lifetime: lifetime,
		Factory:  func(r Resolver) (any, error) { return f(r) },
	})
}

// TryProvide is Provide guarded by TryAdd.
func TryProvide[T any](c *Collection, lifetime Lifetime, f func(r Resolver) (T, error)) bool {
	return c.TryAdd(Descriptor{
		Key:      KeyOf[T](),
		Lifetime: lifetime,
		Factory:  func(r Resolver) (any, error) { return f(r) },
	})
}

// ProvideInstance registers v under KeyOf[T].
func ProvideInstance[T any](c *Collection, v T) *Collection {
	return c.AddInstance(KeyOf[T](), v)
}
