package di

import "reflect"

// DependencyKey identifies a service in a Collection, a Container or any other Resolver.
//
// Keys are typically defined as package-level constants to avoid typos.
//
// Example:
//
//	const (
//	  KeyDB     di.DependencyKey = "db"
//	  KeyLogger di.DependencyKey = "logger"
//	)
type DependencyKey string

// Key converts a string into a DependencyKey.
func Key(name string) DependencyKey { return DependencyKey(name) }

// KeyOf returns the key derived from T's type, e.g. "*mapping.Mapper".
//
// It is the key used by Provide and ResolveAs, so a service registered by type
// can be found again without agreeing on a string.
func KeyOf[T any]() DependencyKey {
	return DependencyKey(reflect.TypeFor[T]().String())
}

// String implements fmt.Stringer.
func (k DependencyKey) String() string { return string(k) }
