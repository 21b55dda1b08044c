// Package mapping is the object-mapping subsystem fed by mapping-profile
// extensions.
//
// A Profile declares type maps on a Configuration (CreateMap[S, D]). Once all
// profiles are added, Build validates the configuration and returns an
// immutable Mapper. Field copying is done by mapstructure: source fields are
// matched to destination fields by name (case-insensitive) or by the "map"
// struct tag, with weak typing enabled. ForMember / AfterMap hooks run after
// the automatic copy.
//
// Example:
//
//	type CatalogProfile struct{}
//
//	func (CatalogProfile) Name() string { return "catalog" }
//
//	func (CatalogProfile) Configure(c *mapping.Configuration) {
//		mapping.CreateMap(c, mapping.ForMember(func(s Item, d *ItemDTO) {
//			d.Label = strings.ToUpper(s.Name)
//		}))
//	}
package mapping

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
)

// DefaultTag is the struct tag consulted for field names.
const DefaultTag = "map"

// ErrNilSource is returned when Map is called with a nil source.
var ErrNilSource = errors.New("mapping: nil source")

// Profile groups related type maps.
type Profile interface {
	Name() string
	Configure(c *Configuration)
}

type funcProfile struct {
	name string
	fn   func(c *Configuration)
}

func (p funcProfile) Name() string                { return p.name }
func (p funcProfile) Configure(c *Configuration) { p.fn(c) }

// NewProfile builds a Profile from a function.
func NewProfile(name string, configure func(c *Configuration)) Profile {
	return funcProfile{name: name, fn: configure}
}

type pair struct {
	src reflect.Type
	dst reflect.Type
}

type typeMap struct {
	profile string
	pair    pair
	apply   func(src any) (any, error)
}

// Configuration collects type maps from profiles.
// It is not safe for concurrent use.
type Configuration struct {
	current  string
	profiles []string
	maps     []*typeMap
	errs     *multierror.Error
}

// NewConfiguration returns an empty Configuration.
func NewConfiguration() *Configuration {
	return &Configuration{}
}

// AddProfile runs p.Configure against the configuration. Profile names must
// be unique; a duplicate is reported by Build and its maps are skipped.
func (c *Configuration) AddProfile(p Profile) *Configuration {
	name := p.Name()
	for _, existing := range c.profiles {
		if existing == name {
			c.errs = multierror.Append(c.errs, DuplicateProfileError{Name: name})
			return c
		}
	}
	c.profiles = append(c.profiles, name)

	prev := c.current
	c.current = name
	p.Configure(c)
	c.current = prev
	return c
}

// Profiles returns the added profile names in order.
func (c *Configuration) Profiles() []string {
	return append([]string(nil), c.profiles...)
}

// Build validates the configuration and freezes it into a Mapper.
// All problems are reported together.
func (c *Configuration) Build() (*Mapper, error) {
	errs := c.errs
	m := &Mapper{maps: make(map[pair]*typeMap, len(c.maps))}
	for _, tm := range c.maps {
		if prev, ok := m.maps[tm.pair]; ok {
			errs = multierror.Append(errs, DuplicateMapError{
				Src:      tm.pair.src.String(),
				Dst:      tm.pair.dst.String(),
				Profiles: [2]string{prev.profile, tm.profile},
			})
			continue
		}
		m.maps[tm.pair] = tm
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

type mapSpec[S, D any] struct {
	tag    string
	ignore []string
	after  []func(src S, dst *D) error
}

// MapOption customizes a single type map.
type MapOption[S, D any] func(*mapSpec[S, D])

// ForMember runs fn after the automatic field copy.
func ForMember[S, D any](fn func(src S, dst *D)) MapOption[S, D] {
	return func(s *mapSpec[S, D]) {
		s.after = append(s.after, func(src S, dst *D) error {
			fn(src, dst)
			return nil
		})
	}
}

// AfterMap runs fn after the automatic field copy; its error fails the Map call.
func AfterMap[S, D any](fn func(src S, dst *D) error) MapOption[S, D] {
	return func(s *mapSpec[S, D]) { s.after = append(s.after, fn) }
}

// Ignore excludes source fields (by field name or tag name) from the automatic copy.
func Ignore[S, D any](fields ...string) MapOption[S, D] {
	return func(s *mapSpec[S, D]) { s.ignore = append(s.ignore, fields...) }
}

// WithTag overrides DefaultTag for one type map.
func WithTag[S, D any](tag string) MapOption[S, D] {
	return func(s *mapSpec[S, D]) { s.tag = tag }
}

// CreateMap declares how to map S into D. Both must be struct types.
func CreateMap[S, D any](c *Configuration, opts ...MapOption[S, D]) {
	st, dt := reflect.TypeFor[S](), reflect.TypeFor[D]()
	if st.Kind() != reflect.Struct || dt.Kind() != reflect.Struct {
		c.errs = multierror.Append(c.errs, InvalidMapError{
			Src:    st.String(),
			Dst:    dt.String(),
			Reason: "source and destination must be struct types",
		})
		return
	}

	spec := &mapSpec[S, D]{tag: DefaultTag}
	for _, opt := range opts {
		if opt != nil {
			opt(spec)
		}
	}

	c.maps = append(c.maps, &typeMap{
		profile: c.current,
		pair:    pair{src: st, dst: dt},
		apply: func(raw any) (any, error) {
			var src S
			switch v := raw.(type) {
			case S:
				src = v
			case *S:
				if v == nil {
					return nil, ErrNilSource
				}
				src = *v
			}
			return mapValue(src, spec)
		},
	})
}

func mapValue[S, D any](src S, spec *mapSpec[S, D]) (D, error) {
	var dst D

	fields, keys := structFields(reflect.ValueOf(src), spec.tag)
	for _, name := range spec.ignore {
		for goName, k := range keys {
			if strings.EqualFold(k, name) || strings.EqualFold(goName, name) {
				delete(fields, k)
			}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &dst,
		TagName:          spec.tag,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return dst, err
	}
	if err := dec.Decode(fields); err != nil {
		return dst, err
	}

	for _, fn := range spec.after {
		if err := fn(src, &dst); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// structFields flattens the exported top-level fields of v into a map keyed
// by tag name (or field name). Nested values are kept as-is so that types
// like time.Time survive the copy. keys maps each Go field name to its key.
func structFields(v reflect.Value, tag string) (out map[string]any, keys map[string]string) {
	t := v.Type()
	out = make(map[string]any, t.NumField())
	keys = make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tv, ok := f.Tag.Lookup(tag); ok {
			n, _, _ := strings.Cut(tv, ",")
			if n == "-" {
				continue
			}
			if n != "" {
				name = n
			}
		}
		out[name] = v.Field(i).Interface()
		keys[f.Name] = name
	}
	return out, keys
}
