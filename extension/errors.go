package extension

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("extension: no implementation found")

	// ErrResolution matches every ResolutionError.
	ErrResolution = errors.New("extension: resolution failed")

	// ErrNilInstance is wrapped when a constructor returns a nil instance without an error.
	ErrNilInstance = errors.New("extension: constructor returned nil")

	// ErrConstructorPanic is wrapped when a constructor or the managed resolver panics.
	ErrConstructorPanic = errors.New("extension: constructor panicked")
)

// NotFoundError is returned when no registration implements the requested contract.
type NotFoundError struct {
	Contract string

	// Scoped is true when the query was restricted by a module predicate.
	Scoped bool
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	// Example: extension: no implementation of extension.ServiceConfigurator
	msg := "extension: no implementation of " + e.Contract
	if e.Scoped {
		msg += " in the selected modules"
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) work.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ResolutionKind tells why an instance could not be produced.
type ResolutionKind int

const (
	// NoCompatibleConstructor means no constructor accepts the supplied arguments.
	NoCompatibleConstructor ResolutionKind = iota + 1

	// InstantiationFailed means the constructor or the managed resolver failed.
	InstantiationFailed
)

// String implements fmt.Stringer.
func (k ResolutionKind) String() string {
	switch k {
	case NoCompatibleConstructor:
		return "no compatible constructor"
	case InstantiationFailed:
		return "instantiation failed"
	default:
		return "unknown"
	}
}

// ResolutionError is returned when a discovered implementation could not be instantiated.
type ResolutionError struct {
	Kind     ResolutionKind
	Contract string
	Name     string
	Module   string

	// Args are the dynamic types of the supplied constructor arguments.
	Args []string

	Err error
}

// Error implements the error interface.
func (e ResolutionError) Error() string {
	// Example: extension: resolve "catalog.services" (github.com/acme/catalog) as extension.ServiceConfigurator: instantiation failed: boom
	var b strings.Builder
	b.WriteString("extension: resolve ")
	b.WriteString(strconv.Quote(e.Name))
	if e.Module != "" {
		b.WriteString(" (" + e.Module + ")")
	}
	b.WriteString(" as " + e.Contract + ": " + e.Kind.String())
	if e.Kind == NoCompatibleConstructor {
		b.WriteString(" for args (" + strings.Join(e.Args, ", ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e ResolutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrResolution) work.
func (e ResolutionError) Is(target error) bool { return target == ErrResolution }

// DuplicateRegistrationError is reported by Validate when two registrations of
// the same contract share a name.
type DuplicateRegistrationError struct {
	Contract string
	Name     string
	Modules  [2]string
}

// Error implements the error interface.
func (e DuplicateRegistrationError) Error() string {
	return "extension: duplicate registration " + strconv.Quote(e.Name) + " for " + e.Contract +
		" (modules " + strconv.Quote(e.Modules[0]) + " and " + strconv.Quote(e.Modules[1]) + ")"
}

// InvalidRegistrationError is reported by Validate for incomplete registrations.
type InvalidRegistrationError struct {
	Contract string
	Name     string
	Module   string
	Reason   string
}

// Error implements the error interface.
func (e InvalidRegistrationError) Error() string {
	return "extension: invalid registration " + strconv.Quote(e.Name) + " (" + e.Module + ") for " +
		e.Contract + ": " + e.Reason
}
