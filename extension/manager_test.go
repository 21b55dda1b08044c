package extension_test

import (
	"errors"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sghaida/extmgr/di"
	"github.com/sghaida/extmgr/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	extension.Extension
	Greet() string
}

type named struct {
	name     string
	priority int
}

func (n *named) Priority() int  { return n.priority }
func (n *named) Greet() string  { return "hello from " + n.name }
func (n *named) String() string { return n.name }

const (
	modA = "github.com/acme/a"
	modB = "github.com/acme/b"
)

func register(r *extension.Registry, module, name string, priority int) *extension.Type {
	return extension.Register(r, extension.Registration[greeter]{
		Module:   module,
		Name:     name,
		Priority: priority,
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter { return &named{name: name, priority: priority} }),
		},
	})
}

func names(types []*extension.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name()
	}
	return out
}

func greetings(gs []greeter) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Greet()
	}
	return out
}

// Discovery
func TestGetImplementations_SortedByPriority(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "A", 10)
	register(r, modA, "B", 1)
	register(r, modA, "C", 5)

	m := extension.NewManager(r)
	assert.Equal(t, []string{"B", "C", "A"}, names(extension.GetImplementations[greeter](m)))
}

func TestGetInstances_OrderFollowsRegistrationPriority(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "late", Priority: 10,
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter { return &named{name: "late", priority: -100} }),
		},
	})
	register(r, modA, "early", 1)

	got, err := extension.GetInstances[greeter](extension.NewManager(r))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello from early", "hello from late"}, greetings(got))
}

func TestGetImplementations_PriorityThenDiscoveryOrder(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "A", 5)
	register(r, modA, "B", 1)
	register(r, modA, "C", 1)

	m := extension.NewManager(r)
	assert.Equal(t, []string{"B", "C", "A"}, names(extension.GetImplementations[greeter](m)))
}

func TestGetImplementations_TiesKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "X", 5)
	register(r, modB, "Y", 5)
	register(r, modA, "Z", -3)
	register(r, modB, "W", 5)

	m := extension.NewManager(r)
	assert.Equal(t, []string{"Z", "X", "Y", "W"}, names(extension.GetImplementations[greeter](m)))
}

func TestGetImplementations_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	m := extension.NewManager(extension.NewRegistry())
	assert.Empty(t, extension.GetImplementations[greeter](m))

	xs, err := extension.GetInstances[greeter](m)
	require.NoError(t, err)
	assert.NotNil(t, xs)
	assert.Empty(t, xs)
}

func TestGetImplementations_SkipsAbstractRegistrations(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{Module: modA, Name: "base", Priority: 0})
	register(r, modA, "concrete", 1)

	m := extension.NewManager(r)
	assert.Equal(t, []string{"concrete"}, names(extension.GetImplementations[greeter](m)))
	assert.Len(t, r.Types(reflect.TypeFor[greeter]()), 2)
}

func TestGetImplementations_ContractsAreSeparate(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "greeter", 1)

	m := extension.NewManager(r)
	assert.Empty(t, extension.GetImplementations[extension.ServiceConfigurator](m))
	assert.Len(t, extension.GetImplementations[greeter](m), 1)
}

func TestGetImplementation_ReturnsFirst(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "late", 100)
	register(r, modA, "early", 1)

	ty, err := extension.GetImplementation[greeter](extension.NewManager(r))
	require.NoError(t, err)
	assert.Equal(t, "early", ty.Name())
	assert.Equal(t, modA, ty.Module())
	assert.Equal(t, 1, ty.Priority())
	assert.Equal(t, "early@"+modA, ty.String())
}

func TestGetImplementation_NotFound(t *testing.T) {
	t.Parallel()

	m := extension.NewManager(extension.NewRegistry())

	_, err := extension.GetImplementation[greeter](m)
	require.Error(t, err)
	assert.ErrorIs(t, err, extension.ErrNotFound)

	var nf extension.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "extension_test.greeter", nf.Contract)
	assert.False(t, nf.Scoped)

	_, err = extension.GetInstance[greeter](m)
	assert.ErrorIs(t, err, extension.ErrNotFound)
}

// Module predicates
func TestInModules_FiltersQuery(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "X", 1)
	register(r, modB, "Y", 2)

	m := extension.NewManager(r)
	got := extension.GetImplementations[greeter](m, extension.InModules(extension.InModule(modB)))
	assert.Equal(t, []string{"Y"}, names(got))

	gs, err := extension.GetInstances[greeter](m, extension.InModules(extension.InModule(modB)))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello from Y"}, greetings(gs))
}

func TestInModules_NothingSelected(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "X", 1)

	m := extension.NewManager(r)
	_, err := extension.GetImplementation[greeter](m, extension.InModules(extension.InModule("github.com/other")))

	var nf extension.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.Scoped)
	assert.Contains(t, err.Error(), "in the selected modules")
}

func TestInModules_Combine(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "X", 1)
	register(r, modB, "Y", 2)
	register(r, "github.com/other/c", "Z", 3)

	m := extension.NewManager(r)
	got := extension.GetImplementations[greeter](m,
		extension.InModules(extension.MustModuleGlob("github.com/acme/*")),
		extension.InModules(extension.NotModule(extension.InModule(modA))),
	)
	assert.Equal(t, []string{"Y"}, names(got))
}

func TestWithModules_RestrictsManager(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "X", 1)
	register(r, modB, "Y", 2)

	m := extension.NewManager(r, extension.WithModules(modA))
	assert.Equal(t, []string{"X"}, names(extension.GetImplementations[greeter](m)))

	// a query predicate narrows the module set further, it never widens it
	assert.Empty(t, extension.GetImplementations[greeter](m, extension.InModules(extension.InModule(modB))))

	_, err := extension.GetImplementation[greeter](m, extension.InModules(extension.InModule(modB)))
	assert.ErrorIs(t, err, extension.ErrNotFound)
}

// Instantiation
func TestGetInstances_OrderMatchesImplementations(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "A", 10)
	register(r, modA, "B", 1)
	register(r, modA, "C", 5)

	gs, err := extension.GetInstances[greeter](extension.NewManager(r))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello from B", "hello from C", "hello from A"}, greetings(gs))
}

func TestGetInstances_FailFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var lateCalls atomic.Int32

	r := extension.NewRegistry()
	register(r, modA, "first", 1)
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "broken", Priority: 2,
		Constructors: []extension.Constructor[greeter]{
			extension.Ctor(func() (greeter, error) { return nil, boom }),
		},
	})
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "late", Priority: 3,
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter {
				lateCalls.Add(1)
				return &named{name: "late"}
			}),
		},
	})

	gs, err := extension.GetInstances[greeter](extension.NewManager(r))
	require.Error(t, err)
	assert.Nil(t, gs)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, extension.ErrResolution)
	assert.Equal(t, int32(0), lateCalls.Load())

	var re extension.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, extension.InstantiationFailed, re.Kind)
	assert.Equal(t, "broken", re.Name)
	assert.Equal(t, modA, re.Module)
}

func TestGetInstance_ConstructorPanic(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "panicky",
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter { panic("kaboom") }),
		},
	})

	_, err := extension.GetInstance[greeter](extension.NewManager(r))
	require.Error(t, err)
	assert.ErrorIs(t, err, extension.ErrConstructorPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestGetInstance_NilInstance(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "typed-nil",
		Constructors: []extension.Constructor[greeter]{
			extension.Ctor(func() (greeter, error) {
				var n *named
				return n, nil
			}),
		},
	})

	_, err := extension.GetInstance[greeter](extension.NewManager(r))
	assert.ErrorIs(t, err, extension.ErrNilInstance)
}

func TestWithArgs_SelectsConstructor(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "flex", Priority: 1,
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter { return &named{name: "default"} }),
			extension.Ctor1(func(name string) (greeter, error) { return &named{name: name}, nil }),
			extension.Ctor2(func(name string, prio int) (greeter, error) {
				return &named{name: name, priority: prio}, nil
			}),
		},
	})
	m := extension.NewManager(r)

	g, err := extension.GetInstance[greeter](m)
	require.NoError(t, err)
	assert.Equal(t, "hello from default", g.Greet())

	g, err = extension.GetInstance[greeter](m, extension.WithArgs("custom"))
	require.NoError(t, err)
	assert.Equal(t, "hello from custom", g.Greet())

	g, err = extension.GetInstance[greeter](m, extension.WithArgs("ranked", 7))
	require.NoError(t, err)
	assert.Equal(t, 7, g.Priority())
}

func TestWithArgs_NoCompatibleConstructor(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "strict",
		Constructors: []extension.Constructor[greeter]{
			extension.Ctor1(func(name string) (greeter, error) { return &named{name: name}, nil }),
		},
	})

	_, err := extension.GetInstance[greeter](extension.NewManager(r), extension.WithArgs(42, nil))

	var re extension.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, extension.NoCompatibleConstructor, re.Kind)
	assert.Equal(t, []string{"int", "nil"}, re.Args)
	assert.Equal(t,
		`extension: resolve "strict" (github.com/acme/a) as extension_test.greeter: no compatible constructor for args (int, nil)`,
		err.Error())
}

// Managed resolution
func TestManagedResolver_TakesPrecedence(t *testing.T) {
	t.Parallel()

	var ctorCalls atomic.Int32
	r := extension.NewRegistry()
	extension.Register(r, extension.Registration[greeter]{
		Module: modA, Name: "svc", Key: "greeter.svc",
		Constructors: []extension.Constructor[greeter]{
			extension.Factory(func() greeter {
				ctorCalls.Add(1)
				return &named{name: "direct"}
			}),
		},
	})

	host := di.NewMapRegistry().Provide("greeter.svc", &named{name: "managed"})
	m := extension.NewManager(r, extension.WithResolver(host))

	g, err := extension.GetInstance[greeter](m)
	require.NoError(t, err)
	assert.Equal(t, "hello from managed", g.Greet())

	g, err = extension.GetInstance[greeter](m, extension.InModules(extension.InModule(modA)))
	require.NoError(t, err)
	assert.Equal(t, "hello from managed", g.Greet())
	assert.Equal(t, int32(0), ctorCalls.Load())
}

func TestManagedResolver_FallsBackWhenKeyMissing(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "svc", 1)

	m := extension.NewManager(r, extension.WithResolver(di.NewMapRegistry()))
	g, err := extension.GetInstance[greeter](m)
	require.NoError(t, err)
	assert.Equal(t, "hello from svc", g.Greet())
}

func TestManagedResolver_KeyDefaultsToName(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	ty := register(r, modA, "svc", 1)
	assert.Equal(t, di.Key("svc"), ty.Key())

	m := extension.NewManager(r, extension.WithResolver(di.NewMapRegistry().Provide("svc", &named{name: "managed"})))
	g, err := extension.GetInstance[greeter](m)
	require.NoError(t, err)
	assert.Equal(t, "hello from managed", g.Greet())
}

func TestManagedResolver_WrongType(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "svc", 1)

	m := extension.NewManager(r, extension.WithResolver(di.NewMapRegistry().Provide("svc", "not a greeter")))
	_, err := extension.GetInstance[greeter](m)

	var re extension.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, extension.InstantiationFailed, re.Kind)

	var wt di.WrongTypeDependencyError
	require.ErrorAs(t, err, &wt)
	assert.Equal(t, "string", wt.GotType)
}

func TestManagedResolver_Error(t *testing.T) {
	t.Parallel()

	failing := di.ResolverFunc(func(di.DependencyKey) (any, bool, error) {
		return nil, false, errors.New("backend down")
	})

	r := extension.NewRegistry()
	register(r, modA, "svc", 1)

	_, err := extension.GetInstance[greeter](extension.NewManager(r, extension.WithResolver(failing)))
	require.Error(t, err)
	assert.ErrorIs(t, err, extension.ErrResolution)
	assert.Contains(t, err.Error(), "backend down")
}

func TestManagedResolver_Panic(t *testing.T) {
	t.Parallel()

	panicking := di.ResolverFunc(func(di.DependencyKey) (any, bool, error) { panic("resolver exploded") })

	r := extension.NewRegistry()
	register(r, modA, "svc", 1)

	_, err := extension.GetInstance[greeter](extension.NewManager(r, extension.WithResolver(panicking)))
	assert.ErrorIs(t, err, extension.ErrConstructorPanic)
}

// Query properties
func TestQueries_AreIdempotent(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	for i, n := range []string{"d", "a", "c", "b"} {
		register(r, modA, n, i%2)
	}
	m := extension.NewManager(r)

	first := names(extension.GetImplementations[greeter](m))
	second := names(extension.GetImplementations[greeter](m))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("discovery changed between calls (-first +second):\n%s", diff)
	}
	assert.Equal(t, 4, r.Len())
}

func TestQueries_Concurrent(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "A", 3)
	register(r, modB, "B", 1)
	register(r, modA, "C", 2)
	m := extension.NewManager(r)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gs, err := extension.GetInstances[greeter](m)
			if err != nil {
				errs <- err
				return
			}
			if diff := cmp.Diff([]string{"hello from B", "hello from C", "hello from A"}, greetings(gs)); diff != "" {
				errs <- errors.New(diff)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestResolveAll_PairsTypeAndInstance(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modB, "second", 2)
	register(r, modA, "first", 1)

	rs, err := extension.ResolveAll[greeter](extension.NewManager(r))
	require.NoError(t, err)
	require.Len(t, rs, 2)
	for _, res := range rs {
		assert.Equal(t, "hello from "+res.Type.Name(), res.Instance.Greet())
	}
	assert.Equal(t, modA, rs[0].Type.Module())
}

func TestWithServices_ChainsResolvers(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "one", 1)
	register(r, modA, "two", 2)

	base := extension.NewManager(r, extension.WithResolver(di.NewMapRegistry().Provide("two", &named{name: "base"})))
	scoped := base.WithServices(di.NewMapRegistry().Provide("one", &named{name: "scoped"}))

	gs, err := extension.GetInstances[greeter](scoped)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello from scoped", "hello from base"}, greetings(gs))

	gs, err = extension.GetInstances[greeter](base)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello from one", "hello from base"}, greetings(gs))
}

func TestNewManager_NilRegistryUsesDefault(t *testing.T) {
	t.Parallel()

	m := extension.NewManager(nil)
	assert.Same(t, extension.Default, m.Registry())
	assert.Nil(t, m.Resolver())
}

func TestQueries_ConcurrentWithRegistration(t *testing.T) {
	t.Parallel()

	r := extension.NewRegistry()
	register(r, modA, "base", 0)
	m := extension.NewManager(r)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 50 {
			register(r, modB, "late-"+strconv.Itoa(i), i+1)
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			types := extension.GetImplementations[greeter](m)
			if len(types) == 0 || types[0].Name() != "base" {
				t.Errorf("base must stay first, got %v", names(types))
				return
			}
		}
	}()
	wg.Wait()

	assert.Len(t, extension.GetImplementations[greeter](m), 51)
}
