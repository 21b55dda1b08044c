package extension

import "reflect"

// Scanner discovers implementations of a contract among the registrations of
// the modules it was configured with.
type Scanner struct {
	registry  *Registry
	moduleSet ModulePredicate
}

// NewScanner returns a Scanner over registry restricted to moduleSet. A nil
// moduleSet covers every module.
func NewScanner(registry *Registry, moduleSet ModulePredicate) *Scanner {
	return &Scanner{registry: registry, moduleSet: moduleSet}
}

// FindTypes returns the concrete registrations of contract that belong to the
// scanner's module set and satisfy pred, in registration order. Abstract
// registrations are skipped.
func (s *Scanner) FindTypes(contract reflect.Type, pred ModulePredicate) []*Type {
	match := bothModules(s.moduleSet, pred)
	var out []*Type
	for _, t := range s.registry.Types(contract) {
		if t.Abstract() || !match.Match(t.module) {
			continue
		}
		out = append(out, t)
	}
	return out
}
