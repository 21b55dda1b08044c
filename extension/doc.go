// Package extension is the extension manager: it keeps an explicit registry of
// extension implementations, discovers the ones implementing a contract,
// instantiates them and returns them ordered by priority.
//
// Go has no runtime type scanning, so discovery is a lookup into a Registry
// that extension packages populate themselves, usually from init() or from a
// Register function listed in a generated file (see cmd/extgen):
//
//	func init() {
//		extension.RegisterDefault(extension.Registration[extension.ServiceConfigurator]{
//			Module:   "github.com/acme/catalog",
//			Name:     "catalog.services",
//			Priority: extension.PriorityRegisterImplementations,
//			Constructors: []extension.Constructor[extension.ServiceConfigurator]{
//				extension.Factory(func() extension.ServiceConfigurator { return &services{} }),
//			},
//		})
//	}
//
// Every registration carries the module it came from, so callers can scope a
// query with a ModulePredicate (InModule, ModuleGlob, ...).
//
// Queries are package-level generic functions because methods cannot be
// generic:
//
//	m := extension.NewManager(extension.Default, extension.WithResolver(host))
//	ts := extension.GetImplementations[extension.ServiceConfigurator](m)
//	xs, err := extension.GetInstances[extension.ServiceConfigurator](m, extension.WithArgs(cfg))
//
// Results are always sorted by ascending priority; equal priorities keep
// registration order. Instances come from the configured di.Resolver when it
// knows the registration's key, otherwise from the first constructor whose
// parameters accept the supplied arguments.
//
// The manager keeps no state between calls and is safe for concurrent queries.
package extension
