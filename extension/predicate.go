package extension

import (
	"slices"

	"github.com/gobwas/glob"
)

// ModulePredicate selects the modules whose registrations take part in a query.
// A nil predicate selects every module.
type ModulePredicate func(module string) bool

// Match reports whether module is selected.
func (p ModulePredicate) Match(module string) bool {
	return p == nil || p(module)
}

// InModule selects exactly the named modules.
func InModule(names ...string) ModulePredicate {
	set := slices.Clone(names)
	return func(module string) bool {
		return slices.Contains(set, module)
	}
}

// ModuleGlob selects modules matching a glob pattern. '/' is the separator, so
// "github.com/acme/*" matches direct children only and "github.com/acme/**"
// matches the whole tree.
func ModuleGlob(pattern string) (ModulePredicate, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return g.Match, nil
}

// MustModuleGlob is ModuleGlob but panics on a malformed pattern.
func MustModuleGlob(pattern string) ModulePredicate {
	p, err := ModuleGlob(pattern)
	if err != nil {
		panic("extension: bad module pattern " + pattern + ": " + err.Error())
	}
	return p
}

// ModuleGlobs selects modules matching any of patterns. No patterns yields a
// nil predicate, which selects everything.
func ModuleGlobs(patterns ...string) (ModulePredicate, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	preds := make([]ModulePredicate, 0, len(patterns))
	for _, pat := range patterns {
		p, err := ModuleGlob(pat)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return AnyModule(preds...), nil
}

// AnyModule selects modules matched by at least one of preds.
func AnyModule(preds ...ModulePredicate) ModulePredicate {
	return func(module string) bool {
		for _, p := range preds {
			if p.Match(module) {
				return true
			}
		}
		return false
	}
}

// NotModule inverts p.
func NotModule(p ModulePredicate) ModulePredicate {
	return func(module string) bool {
		return !p.Match(module)
	}
}

func bothModules(a, b ModulePredicate) ModulePredicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(module string) bool {
		return a(module) && b(module)
	}
}
