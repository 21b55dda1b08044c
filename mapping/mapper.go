package mapping

import (
	"reflect"
	"strconv"
	"strings"
)

// Mapper is the frozen result of Configuration.Build. It is safe for
// concurrent use.
type Mapper struct {
	maps map[pair]*typeMap
}

// Len returns the number of type maps.
func (m *Mapper) Len() int { return len(m.maps) }

// Has reports whether a map from src to dst exists.
func (m *Mapper) Has(src, dst reflect.Type) bool {
	_, ok := m.maps[pair{src: src, dst: dst}]
	return ok
}

// Map converts src (a value or a pointer to a value) into a D using the
// type map declared for that pair.
func Map[D any](m *Mapper, src any) (D, error) {
	var zero D
	if src == nil {
		return zero, ErrNilSource
	}
	st := reflect.TypeOf(src)
	if st.Kind() == reflect.Pointer {
		if reflect.ValueOf(src).IsNil() {
			return zero, ErrNilSource
		}
		st = st.Elem()
	}
	dt := reflect.TypeFor[D]()

	tm, ok := m.maps[pair{src: st, dst: dt}]
	if !ok {
		return zero, MissingMapError{Src: st.String(), Dst: dt.String()}
	}
	out, err := tm.apply(src)
	if err != nil {
		return zero, MapError{Src: st.String(), Dst: dt.String(), Err: err}
	}
	return out.(D), nil
}

// MapAll maps every element of src, stopping at the first error.
func MapAll[S, D any](m *Mapper, src []S) ([]D, error) {
	out := make([]D, 0, len(src))
	for _, s := range src {
		d, err := Map[D](m, s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// MissingMapError is returned when no type map exists for a pair.
type MissingMapError struct{ Src, Dst string }

// Error implements the error interface.
func (e MissingMapError) Error() string {
	return "mapping: no map from " + e.Src + " to " + e.Dst
}

// MapError wraps a failure while mapping one value.
type MapError struct {
	Src, Dst string
	Err      error
}

// Error implements the error interface.
func (e MapError) Error() string {
	return "mapping: " + e.Src + " -> " + e.Dst + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e MapError) Unwrap() error { return e.Err }

// DuplicateMapError is reported by Build when two maps share a pair.
type DuplicateMapError struct {
	Src, Dst string
	Profiles [2]string
}

// Error implements the error interface.
func (e DuplicateMapError) Error() string {
	return "mapping: duplicate map " + e.Src + " -> " + e.Dst +
		" (profiles " + strconv.Quote(e.Profiles[0]) + " and " + strconv.Quote(e.Profiles[1]) + ")"
}

// DuplicateProfileError is reported by Build when a profile name is added twice.
type DuplicateProfileError struct{ Name string }

// Error implements the error interface.
func (e DuplicateProfileError) Error() string {
	return "mapping: duplicate profile " + strconv.Quote(e.Name)
}

// InvalidMapError is reported by Build for maps that cannot be declared.
type InvalidMapError struct {
	Src, Dst string
	Reason   string
}

// Error implements the error interface.
func (e InvalidMapError) Error() string {
	return strings.Join([]string{"mapping: invalid map ", e.Src, " -> ", e.Dst, ": ", e.Reason}, "")
}
