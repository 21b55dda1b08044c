// Package extmgr is an extension manager and bootstrap runtime for Go hosts.
//
// Extensions are registered against contracts (interfaces), each with a
// module name and a priority. The host asks for every implementation of a
// contract and gets them back in priority order, instantiated either from a
// managed service resolver or from the constructors given at registration.
//
// The repository is split into small packages:
//
//   - extension: registry, discovery, ordering and instantiation
//   - di: service collection, container and resolvers extensions build on
//   - mapping: object-mapping profiles contributed by extensions
//   - pipeline: the HTTP request pipeline extensions configure
//   - bootstrap: runs the mapping, services and application phases in order
//   - config, logging: ambient host configuration and structured logging
//   - cmd/extgen: generates the registration file from extensions.yaml
//   - examples/bootstrap: a runnable host built only from extensions
//
// Start with examples/bootstrap for an end-to-end wiring.
package extmgr
