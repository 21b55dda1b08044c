package extension

import (
	"fmt"
	"reflect"

	"github.com/sghaida/extmgr/di"
)

// InstanceResolver turns a discovered Type into an instance.
//
// It asks the managed resolver for the Type's key first. Only when the key is
// not registered there does it fall back to the Type's explicit constructors,
// picking the first one that accepts the supplied arguments.
type InstanceResolver struct {
	services di.Resolver
}

// NewInstanceResolver returns an InstanceResolver backed by services, which may be nil.
func NewInstanceResolver(services di.Resolver) *InstanceResolver {
	return &InstanceResolver{services: services}
}

// Resolve produces an instance of t's contract.
//
// It returns a ResolutionError of kind InstantiationFailed if the managed
// resolver or the chosen constructor fails, panics, returns nil, or returns a
// value that does not implement the contract, and of kind
// NoCompatibleConstructor if no constructor accepts args.
func (r *InstanceResolver) Resolve(t *Type, args ...any) (any, error) {
	if v, ok, err := r.managed(t); ok || err != nil {
		if err != nil {
			return nil, r.failure(t, InstantiationFailed, args, err)
		}
		return v, nil
	}

	for _, c := range t.ctors {
		v, accepted, err := invoke(c, args)
		if !accepted {
			continue
		}
		if err != nil {
			return nil, r.failure(t, InstantiationFailed, args, err)
		}
		if v == nil {
			return nil, r.failure(t, InstantiationFailed, args, ErrNilInstance)
		}
		return v, nil
	}
	return nil, r.failure(t, NoCompatibleConstructor, args, nil)
}

func (r *InstanceResolver) managed(t *Type) (v any, ok bool, err error) {
	if r.services == nil {
		return nil, false, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			v, ok = nil, false
			err = fmt.Errorf("%w: %v", ErrConstructorPanic, rec)
		}
	}()

	v, ok, err = r.services.Resolve(t.key)
	if err != nil || !ok {
		return nil, false, err
	}
	if v == nil {
		return nil, false, ErrNilInstance
	}
	if !reflect.TypeOf(v).Implements(t.contract) {
		return nil, false, di.WrongTypeDependencyError{
			Key:      t.key,
			GotType:  reflect.TypeOf(v).String(),
			WantType: t.contract.String(),
		}
	}
	return v, true, nil
}

func invoke(c erasedCtor, args []any) (v any, accepted bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, accepted = nil, true
			err = fmt.Errorf("%w: %v", ErrConstructorPanic, rec)
		}
	}()
	v, accepted, err = c.build(args)
	if accepted && err == nil && isNil(v) {
		v = nil
	}
	return v, accepted, err
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func (r *InstanceResolver) failure(t *Type, kind ResolutionKind, args []any, err error) error {
	return ResolutionError{
		Kind:     kind,
		Contract: t.contract.String(),
		Name:     t.name,
		Module:   t.module,
		Args:     describeArgs(args),
		Err:      err,
	}
}
