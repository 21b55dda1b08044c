// Package di provides the small service container that extensions configure
// during bootstrap.
//
// It has two halves:
//
//   - Collection: a mutable list of service descriptors. Extensions add their
//     services to it (Add, AddSingleton, AddTransient, AddInstance) or only when
//     nothing is registered under the key yet (TryAdd*).
//
//   - Container: the finalized, read-only Resolver built from a Collection.
//     Singletons are created once and cached, transients are created per call,
//     and keys missing locally are looked up in an optional parent Resolver.
//
// Anything implementing Resolver can act as the "existing resolver" the
// extension manager consults before constructing an extension directly.
// MapRegistry is the simplest one: a static map of pre-built values.
//
// There is no reflection-based injection. Factories receive a Resolver and pull
// what they need through the typed helpers (GetAs, TryGetAs, MustGetAs, ResolveAs).
//
// Import
//
//	"github.com/sghaida/extmgr/di"
package di
