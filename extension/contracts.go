package extension

import (
	"reflect"

	"github.com/sghaida/extmgr/di"
	"github.com/sghaida/extmgr/mapping"
	"github.com/sghaida/extmgr/pipeline"
)

// Extension is the capability every extension contract embeds.
//
// Ordering uses Registration.Priority, which is known without building an
// instance. Priority should report the same value; it is not consulted when
// sorting.
type Extension interface {
	// Priority reports the extension's priority: lower runs earlier.
	Priority() int
}

// ServiceConfigurator contributes services to the container.
type ServiceConfigurator interface {
	Extension

	// ConfigureServices registers services. resolver exposes the services the
	// host made available before the container exists.
	ConfigureServices(services *di.Collection, resolver di.Resolver) error
}

// ApplicationConfigurator contributes middleware and routes to the request pipeline.
type ApplicationConfigurator interface {
	Extension

	// ConfigureApplication configures app. resolver is the finalized container.
	ConfigureApplication(app *pipeline.Builder, resolver di.Resolver) error
}

// MappingProfileProvider contributes object-mapping profiles.
type MappingProfileProvider interface {
	Extension

	MappingProfiles() []mapping.Profile
}

// ContractName returns a printable name for contract C.
func ContractName[C any]() string {
	return reflect.TypeFor[C]().String()
}
