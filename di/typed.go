package di

import "reflect"

// GetAs returns the service typed as T.
//
// ok is false if r is nil, the key is missing, resolution failed or the
// stored value is not a T.
func GetAs[T any](r Resolver, key DependencyKey) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	raw, ok, err := r.Resolve(key)
	if err != nil || !ok || raw == nil {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// TryGetAs returns the service typed as T.
//
// It returns:
//   - the resolver's error if resolution failed
//   - MissingDependencyError if the key is not registered
//   - WrongTypeDependencyError if the key exists but is not a T
func TryGetAs[T any](r Resolver, key DependencyKey) (T, error) {
	var zero T
	if r == nil {
		return zero, MissingDependencyError{Key: key}
	}
	raw, ok, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	if !ok || raw == nil {
		return zero, MissingDependencyError{Key: key}
	}
	v, ok := raw.(T)
	if !ok {
		return zero, WrongTypeDependencyError{
			Key:      key,
			GotType:  reflect.TypeOf(raw).String(),
			WantType: reflect.TypeFor[T]().String(),
		}
	}
	return v, nil
}

// MustGetAs returns the service typed as T or panics with the TryGetAs error.
func MustGetAs[T any](r Resolver, key DependencyKey) T {
	v, err := TryGetAs[T](r, key)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveAs is TryGetAs keyed by KeyOf[T].
func ResolveAs[T any](r Resolver) (T, error) {
	return TryGetAs[T](r, KeyOf[T]())
}
