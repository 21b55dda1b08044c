package di

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrResolverPanic is returned if a resolver or a service factory panics.
	ErrResolverPanic = errors.New("di: panic during Resolve")

	// ErrNilFactory is returned when a descriptor has neither a factory nor an instance.
	ErrNilFactory = errors.New("di: nil service factory")
)

// MissingDependencyError is returned when no service is registered under a key.
//
// It is used by TryGetAs to distinguish "missing" from "wrong type".
type MissingDependencyError struct{ Key DependencyKey }

// Error implements the error interface.
func (e MissingDependencyError) Error() string {
	// Example: di: dependency "db" missing
	return "di: dependency " + strconv.Quote(string(e.Key)) + " missing"
}

// WrongTypeDependencyError is returned when a service exists but is of a different type.
type WrongTypeDependencyError struct {
	// Key is the dependency key requested.
	Key DependencyKey

	// GotType is the dynamic type of the stored value.
	GotType string

	// WantType is the type the caller asked for.
	WantType string
}

// Error implements the error interface.
func (e WrongTypeDependencyError) Error() string {
	// Example: di: dependency "db" has wrong type (*mypkg.Logger), want *mypkg.DB
	msg := "di: dependency " + strconv.Quote(string(e.Key)) + " has wrong type (" + e.GotType + ")"
	if e.WantType != "" {
		msg += ", want " + e.WantType
	}
	return msg
}

// CircularDependencyError is returned when a factory, directly or indirectly,
// resolves the key it is currently building.
type CircularDependencyError struct{ Chain []DependencyKey }

// Error implements the error interface.
func (e CircularDependencyError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, k := range e.Chain {
		parts[i] = strconv.Quote(string(k))
	}
	// Example: di: circular dependency "a" -> "b" -> "a"
	return "di: circular dependency " + strings.Join(parts, " -> ")
}

// FactoryError wraps an error returned by a service factory.
type FactoryError struct {
	Key DependencyKey
	Err error
}

// Error implements the error interface.
func (e FactoryError) Error() string {
	return "di: factory for " + strconv.Quote(string(e.Key)) + " failed: " + e.Err.Error()
}

// Unwrap returns the factory's error.
func (e FactoryError) Unwrap() error { return e.Err }
