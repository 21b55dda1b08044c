package extension

import (
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sghaida/extmgr/di"
)

// Registration describes one implementation of contract C.
type Registration[C Extension] struct {
	// Module identifies the package the implementation lives in, usually its
	// import path. Module predicates filter on it.
	Module string

	// Name identifies the implementation within its contract.
	Name string

	// Priority orders implementations: lower runs earlier.
	Priority int

	// Key is looked up in the managed resolver before constructing directly.
	// It defaults to Name.
	Key di.DependencyKey

	// Constructors are tried in order; the first one accepting the supplied
	// arguments is used. A registration without constructors is abstract and
	// never discovered.
	Constructors []Constructor[C]
}

// Type is a registered implementation as seen by discovery. It is immutable.
type Type struct {
	name     string
	module   string
	contract reflect.Type
	priority int
	key      di.DependencyKey
	seq      uint64

	ctors       []erasedCtor
	invalidCtor bool
}

type erasedCtor struct {
	params []reflect.Type
	build  func(args []any) (any, bool, error)
}

// Name returns the registration name.
func (t *Type) Name() string { return t.name }

// Module returns the module the registration came from.
func (t *Type) Module() string { return t.module }

// Contract returns the contract interface type.
func (t *Type) Contract() reflect.Type { return t.contract }

// Priority returns the declared priority.
func (t *Type) Priority() int { return t.priority }

// Key returns the managed-resolver key.
func (t *Type) Key() di.DependencyKey { return t.key }

// Abstract reports whether the registration has no constructors.
func (t *Type) Abstract() bool { return len(t.ctors) == 0 }

// String implements fmt.Stringer.
func (t *Type) String() string { return t.name + "@" + t.module }

// Registry holds registrations keyed by contract.
//
// Registration is expected at init or bootstrap time; queries may run
// concurrently with each other and with late registrations.
type Registry struct {
	mu         sync.RWMutex
	seq        uint64
	byContract map[reflect.Type][]*Type
	modules    []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byContract: make(map[reflect.Type][]*Type)}
}

// Default is the process-wide registry used by RegisterDefault.
var Default = NewRegistry()

// Register records reg in r and returns the resulting Type. It never fails:
// problems such as duplicate names or missing constructors are reported by
// Validate, so a bootstrap can list all of them at once.
func Register[C Extension](r *Registry, reg Registration[C]) *Type {
	t := newType(reg)
	_ = r.add(t, false)
	return t
}

// MustRegister is Register but panics instead of recording an invalid
// registration. It suits init() functions.
func MustRegister[C Extension](r *Registry, reg Registration[C]) *Type {
	t := newType(reg)
	if err := r.add(t, true); err != nil {
		panic(err)
	}
	return t
}

// RegisterDefault is MustRegister on the Default registry.
func RegisterDefault[C Extension](reg Registration[C]) *Type {
	return MustRegister(Default, reg)
}

func newType[C Extension](reg Registration[C]) *Type {
	t := &Type{
		name:     reg.Name,
		module:   reg.Module,
		contract: reflect.TypeFor[C](),
		priority: reg.Priority,
		key:      reg.Key,
	}
	if t.key == "" {
		t.key = di.Key(reg.Name)
	}
	for _, c := range reg.Constructors {
		if !c.valid() {
			t.invalidCtor = true
			continue
		}
		build := c.build
		t.ctors = append(t.ctors, erasedCtor{
			params: c.params,
			build: func(args []any) (any, bool, error) {
				v, ok, err := build(args)
				return v, ok, err
			},
		})
	}
	return t
}

func (r *Registry) add(t *Type, strict bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.byContract[t.contract]
	if strict {
		if errs := problems(t, existing); len(errs) > 0 {
			return errs[0]
		}
	}

	r.seq++
	t.seq = r.seq
	r.byContract[t.contract] = append(existing, t)
	if !slices.Contains(r.modules, t.module) {
		r.modules = append(r.modules, t.module)
	}
	return nil
}

// Types returns every registration of contract in registration order,
// abstract ones included.
func (r *Registry) Types(contract reflect.Type) []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Type(nil), r.byContract[contract]...)
}

// Modules returns the distinct module names in first-registration order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.modules...)
}

// Contracts returns the names of all contracts with at least one registration, sorted.
func (r *Registry) Contracts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byContract))
	for c := range r.byContract {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ts := range r.byContract {
		n += len(ts)
	}
	return n
}

// Validate reports every invalid registration: non-interface contracts,
// empty module or name, zero-value or missing constructors, and duplicate
// names within a contract.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contracts := make([]reflect.Type, 0, len(r.byContract))
	for c := range r.byContract {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].String() < contracts[j].String() })

	var errs *multierror.Error
	for _, c := range contracts {
		ts := r.byContract[c]
		for i, t := range ts {
			errs = multierror.Append(errs, problems(t, ts[:i])...)
		}
	}
	return errs.ErrorOrNil()
}

func problems(t *Type, earlier []*Type) []error {
	var errs []error
	invalid := func(reason string) {
		errs = append(errs, InvalidRegistrationError{
			Contract: t.contract.String(),
			Name:     t.name,
			Module:   t.module,
			Reason:   reason,
		})
	}

	if t.contract.Kind() != reflect.Interface {
		invalid("contract must be an interface type")
	}
	if t.module == "" {
		invalid("empty module")
	}
	if t.name == "" {
		invalid("empty name")
	}
	if t.invalidCtor {
		invalid("zero-value constructor")
	}
	if len(t.ctors) == 0 {
		invalid("no constructors (abstract registration)")
	}
	for _, e := range earlier {
		if e.name == t.name {
			errs = append(errs, DuplicateRegistrationError{
				Contract: t.contract.String(),
				Name:     t.name,
				Modules:  [2]string{e.module, t.module},
			})
			break
		}
	}
	return errs
}

// describeArgs renders the dynamic types of args for error messages.
func describeArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			out[i] = "nil"
			continue
		}
		out[i] = reflect.TypeOf(a).String()
	}
	return out
}

// describeParams renders constructor signatures for debug logs.
func describeParams(ctors []erasedCtor) []string {
	out := make([]string, len(ctors))
	for i, c := range ctors {
		params := make([]string, len(c.params))
		for j, p := range c.params {
			params[j] = p.String()
		}
		out[i] = "(" + strings.Join(params, ", ") + ")"
	}
	return out
}
