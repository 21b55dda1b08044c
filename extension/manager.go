package extension

import (
	"cmp"
	"log/slog"
	"reflect"
	"slices"

	"github.com/sghaida/extmgr/di"
)

// Manager answers "which implementations of contract C exist, in what order,
// and give me instances of them".
//
// A Manager keeps no state between queries. It is safe for concurrent use,
// including while registrations are added to its Registry; a query sees the
// registrations present when it started.
type Manager struct {
	registry *Registry
	scanner  *Scanner
	resolver *InstanceResolver
	logger   *slog.Logger

	services  di.Resolver
	moduleSet ModulePredicate
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithResolver sets the managed resolver consulted before direct construction.
func WithResolver(r di.Resolver) ManagerOption {
	return func(m *Manager) { m.services = r }
}

// WithModules restricts the manager to registrations from the named modules.
func WithModules(names ...string) ManagerOption {
	return func(m *Manager) { m.moduleSet = InModule(names...) }
}

// WithModuleSet restricts the manager to modules selected by pred.
func WithModuleSet(pred ModulePredicate) ManagerOption {
	return func(m *Manager) { m.moduleSet = pred }
}

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a Manager over reg. A nil reg means Default.
func NewManager(reg *Registry, opts ...ManagerOption) *Manager {
	if reg == nil {
		reg = Default
	}
	m := &Manager{registry: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.scanner = NewScanner(reg, m.moduleSet)
	m.resolver = NewInstanceResolver(m.services)
	return m
}

// WithServices returns a copy of m whose managed lookups ask services first
// and then m's own resolver.
func (m *Manager) WithServices(services di.Resolver) *Manager {
	c := *m
	c.services = di.Chain(services, m.services)
	c.resolver = NewInstanceResolver(c.services)
	return &c
}

// Registry returns the registry the manager queries.
func (m *Manager) Registry() *Registry { return m.registry }

// Resolver returns the managed resolver, or nil.
func (m *Manager) Resolver() di.Resolver { return m.services }

// QueryOption narrows a single query.
type QueryOption func(*query)

type query struct {
	pred ModulePredicate
	args []any
}

// InModules restricts the query to modules selected by pred.
func InModules(pred ModulePredicate) QueryOption {
	return func(q *query) { q.pred = bothModules(q.pred, pred) }
}

// WithArgs passes args to the implementations' constructors.
func WithArgs(args ...any) QueryOption {
	return func(q *query) { q.args = args }
}

func newQuery(opts []QueryOption) query {
	var q query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Implementations returns the concrete registrations of contract sorted by
// ascending priority. Equal priorities keep registration order.
func (m *Manager) Implementations(contract reflect.Type, opts ...QueryOption) []*Type {
	q := newQuery(opts)
	types := m.scanner.FindTypes(contract, q.pred)
	slices.SortStableFunc(types, func(a, b *Type) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), cmp.Compare(a.seq, b.seq))
	})
	m.logger.Debug("discovered implementations",
		slog.String("contract", contract.String()),
		slog.Int("count", len(types)),
		slog.Bool("scoped", q.pred != nil),
	)
	return types
}

// Instantiate resolves t with args.
func (m *Manager) Instantiate(t *Type, args ...any) (any, error) {
	v, err := m.resolver.Resolve(t, args...)
	if err != nil {
		m.logger.Debug("resolution failed",
			slog.String("type", t.String()),
			slog.Any("constructors", describeParams(t.ctors)),
			slog.Any("error", err),
		)
	}
	return v, err
}

// Resolved pairs an instance with the registration it came from.
type Resolved[C any] struct {
	Type     *Type
	Instance C
}

// GetImplementation returns the lowest-priority implementation of C.
//
// It returns NotFoundError if there is none.
func GetImplementation[C Extension](m *Manager, opts ...QueryOption) (*Type, error) {
	types := GetImplementations[C](m, opts...)
	if len(types) == 0 {
		return nil, notFound[C](m, opts)
	}
	return types[0], nil
}

// GetImplementations returns every implementation of C sorted by ascending priority.
// An empty result is not an error.
func GetImplementations[C Extension](m *Manager, opts ...QueryOption) []*Type {
	return m.Implementations(reflect.TypeFor[C](), opts...)
}

// GetInstance instantiates the lowest-priority implementation of C.
//
// It returns NotFoundError if there is none and ResolutionError if it could
// not be instantiated.
func GetInstance[C Extension](m *Manager, opts ...QueryOption) (C, error) {
	var zero C
	t, err := GetImplementation[C](m, opts...)
	if err != nil {
		return zero, err
	}
	v, err := m.Instantiate(t, newQuery(opts).args...)
	if err != nil {
		return zero, err
	}
	return v.(C), nil
}

// GetInstances instantiates every implementation of C in priority order.
//
// It stops at the first failure and returns no partial result. No
// implementations yield an empty slice and a nil error.
func GetInstances[C Extension](m *Manager, opts ...QueryOption) ([]C, error) {
	resolved, err := ResolveAll[C](m, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]C, len(resolved))
	for i, r := range resolved {
		out[i] = r.Instance
	}
	return out, nil
}

// ResolveAll is GetInstances that also reports which registration produced
// each instance.
func ResolveAll[C Extension](m *Manager, opts ...QueryOption) ([]Resolved[C], error) {
	args := newQuery(opts).args
	types := GetImplementations[C](m, opts...)
	out := make([]Resolved[C], 0, len(types))
	for _, t := range types {
		v, err := m.Instantiate(t, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, Resolved[C]{Type: t, Instance: v.(C)})
	}
	return out, nil
}

func notFound[C any](m *Manager, opts []QueryOption) error {
	return NotFoundError{
		Contract: ContractName[C](),
		Scoped:   m.moduleSet != nil || newQuery(opts).pred != nil,
	}
}
