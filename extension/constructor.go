package extension

import "reflect"

// Constructor is an explicit constructor for an implementation of contract C.
//
// It accepts an argument list when the arity matches and every argument is
// assignable to the corresponding parameter. nil is accepted for pointer,
// interface, map, slice, func and chan parameters.
type Constructor[C any] struct {
	params []reflect.Type
	build  func(args []any) (C, bool, error)
}

// Params returns the parameter types in order.
func (c Constructor[C]) Params() []reflect.Type {
	return append([]reflect.Type(nil), c.params...)
}

// Accepts reports whether args can be passed to this constructor.
func (c Constructor[C]) Accepts(args ...any) bool {
	if len(args) != len(c.params) {
		return false
	}
	for i, a := range args {
		if !assignable(a, c.params[i]) {
			return false
		}
	}
	return true
}

func (c Constructor[C]) valid() bool { return c.build != nil }

// Factory wraps a constructor that takes no arguments and cannot fail.
func Factory[C any](fn func() C) Constructor[C] {
	return Constructor[C]{
		build: func(args []any) (C, bool, error) {
			var zero C
			if len(args) != 0 {
				return zero, false, nil
			}
			return fn(), true, nil
		},
	}
}

// Ctor wraps a constructor that takes no arguments.
func Ctor[C any](fn func() (C, error)) Constructor[C] {
	return Constructor[C]{
		build: func(args []any) (C, bool, error) {
			var zero C
			if len(args) != 0 {
				return zero, false, nil
			}
			v, err := fn()
			return v, true, err
		},
	}
}

// Ctor1 wraps a one-argument constructor.
func Ctor1[C, A any](fn func(A) (C, error)) Constructor[C] {
	return Constructor[C]{
		params: []reflect.Type{reflect.TypeFor[A]()},
		build: func(args []any) (C, bool, error) {
			var zero C
			if len(args) != 1 {
				return zero, false, nil
			}
			a, ok := argAs[A](args[0])
			if !ok {
				return zero, false, nil
			}
			v, err := fn(a)
			return v, true, err
		},
	}
}

// Ctor2 wraps a two-argument constructor.
func Ctor2[C, A, B any](fn func(A, B) (C, error)) Constructor[C] {
	return Constructor[C]{
		params: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()},
		build: func(args []any) (C, bool, error) {
			var zero C
			if len(args) != 2 {
				return zero, false, nil
			}
			a, okA := argAs[A](args[0])
			b, okB := argAs[B](args[1])
			if !okA || !okB {
				return zero, false, nil
			}
			v, err := fn(a, b)
			return v, true, err
		},
	}
}

// Ctor3 wraps a three-argument constructor.
func Ctor3[C, A, B, D any](fn func(A, B, D) (C, error)) Constructor[C] {
	return Constructor[C]{
		params: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[D]()},
		build: func(args []any) (C, bool, error) {
			var zero C
			if len(args) != 3 {
				return zero, false, nil
			}
			a, okA := argAs[A](args[0])
			b, okB := argAs[B](args[1])
			d, okD := argAs[D](args[2])
			if !okA || !okB || !okD {
				return zero, false, nil
			}
			v, err := fn(a, b, d)
			return v, true, err
		},
	}
}

func argAs[A any](v any) (A, bool) {
	var zero A
	if v == nil {
		return zero, nilable(reflect.TypeFor[A]())
	}
	a, ok := v.(A)
	return a, ok
}

func assignable(v any, t reflect.Type) bool {
	if v == nil {
		return nilable(t)
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
