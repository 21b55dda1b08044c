// Package bootstrap runs the startup phases that turn registered extensions
// into a configured application.
//
// Phases run in a fixed order, each with its own priority-sorted extension
// list:
//
//  1. mapping: every MappingProfileProvider contributes profiles; the
//     resulting Mapper is registered as a service under MapperKey.
//  2. services: every ServiceConfigurator registers services into the
//     collection, seeing the host resolver.
//  3. application: the collection is built into a container (falling back to
//     the host resolver) and every ApplicationConfigurator configures the
//     request pipeline with it.
//
// Any failure aborts the run; no partially configured Application is
// returned.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sghaida/extmgr/di"
	"github.com/sghaida/extmgr/extension"
	"github.com/sghaida/extmgr/logging"
	"github.com/sghaida/extmgr/mapping"
	"github.com/sghaida/extmgr/pipeline"
)

// MapperKey is the service key of the *mapping.Mapper built in the mapping phase.
var MapperKey = di.KeyOf[*mapping.Mapper]()

// ErrExtensionPanic is wrapped when an extension method panics.
var ErrExtensionPanic = errors.New("bootstrap: extension panicked")

// Phase names a bootstrap step.
type Phase string

const (
	PhaseValidate    Phase = "validate"
	PhaseMapping     Phase = "mapping"
	PhaseServices    Phase = "services"
	PhaseApplication Phase = "application"
)

// PhaseError reports the phase, and the extension if any, that aborted a run.
type PhaseError struct {
	Phase     Phase
	Extension string
	Err       error
}

// Error implements the error interface.
func (e PhaseError) Error() string {
	// Example: bootstrap: services phase failed in catalog.services@github.com/acme/catalog: boom
	msg := "bootstrap: " + string(e.Phase) + " phase failed"
	if e.Extension != "" {
		msg += " in " + e.Extension
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e PhaseError) Unwrap() error { return e.Err }

// Invocation describes one extension call, in the order it happens.
type Invocation struct {
	Phase     Phase
	Extension string
	Module    string
	Priority  int
}

// Application is the outcome of a successful run.
type Application struct {
	// ID identifies the run in logs.
	ID string

	Mapper     *mapping.Mapper
	Collection *di.Collection
	Services   *di.Container
	Pipeline   *pipeline.Builder
	Handler    http.Handler
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithHostResolver exposes host services to the services phase and backs
// the built container.
func WithHostResolver(r di.Resolver) Option {
	return func(s *Sequencer) { s.host = r }
}

// WithModules restricts every phase to modules selected by pred.
func WithModules(pred extension.ModulePredicate) Option {
	return func(s *Sequencer) { s.modules = pred }
}

// WithObserver calls fn before each extension invocation.
func WithObserver(fn func(Invocation)) Option {
	return func(s *Sequencer) { s.observer = fn }
}

// WithConstructorArgs passes args to every extension constructor.
func WithConstructorArgs(args ...any) Option {
	return func(s *Sequencer) { s.args = args }
}

// Sequencer drives the bootstrap phases against an extension Manager.
type Sequencer struct {
	manager  *extension.Manager
	host     di.Resolver
	modules  extension.ModulePredicate
	observer func(Invocation)
	args     []any
}

// New returns a Sequencer over m.
func New(m *extension.Manager, opts ...Option) *Sequencer {
	s := &Sequencer{manager: m}
	for _, opt := range opts {
		opt(s)
	}
	if s.host == nil {
		s.host = di.NewMapRegistry()
	}
	return s
}

// Run validates the registry and runs every phase in order.
func (s *Sequencer) Run(ctx context.Context) (*Application, error) {
	id := uuid.NewString()
	ctx = logging.Append(ctx, "bootstrap_id", id)
	logger := logging.FromContext(ctx)
	start := time.Now()

	logger.InfoContext(ctx, "bootstrap started", slog.Any("modules", s.manager.Registry().Modules()))

	if err := s.manager.Registry().Validate(); err != nil {
		return nil, PhaseError{Phase: PhaseValidate, Err: err}
	}

	if err := checkpoint(ctx, PhaseMapping); err != nil {
		return nil, err
	}
	mapper, err := s.ConfigureMapping(ctx)
	if err != nil {
		return nil, err
	}

	collection := di.NewCollection()
	collection.AddInstance(MapperKey, mapper)

	if err := checkpoint(ctx, PhaseServices); err != nil {
		return nil, err
	}
	if err := s.ConfigureServices(ctx, collection); err != nil {
		return nil, err
	}

	container := collection.Build(di.WithParent(s.host))
	builder := pipeline.NewBuilder()

	if err := checkpoint(ctx, PhaseApplication); err != nil {
		return nil, err
	}
	if err := s.ConfigureApplication(ctx, builder, container); err != nil {
		return nil, err
	}

	app := &Application{
		ID:         id,
		Mapper:     mapper,
		Collection: collection,
		Services:   container,
		Pipeline:   builder,
		Handler:    builder.Build(),
	}
	logger.InfoContext(ctx, "bootstrap finished",
		slog.Int("maps", mapper.Len()),
		slog.Int("services", collection.Len()),
		slog.Any("middlewares", builder.Middlewares()),
		slog.Duration("took", time.Since(start)),
	)
	return app, nil
}

// ConfigureMapping collects the profiles of every MappingProfileProvider and
// builds the Mapper. Providers are resolved from the host resolver first.
func (s *Sequencer) ConfigureMapping(ctx context.Context) (*mapping.Mapper, error) {
	cfg := mapping.NewConfiguration()
	err := invokeAll(ctx, s, s.manager.WithServices(s.host), PhaseMapping, func(p extension.MappingProfileProvider) error {
		for _, prof := range p.MappingProfiles() {
			cfg.AddProfile(prof)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mapper, err := cfg.Build()
	if err != nil {
		return nil, PhaseError{Phase: PhaseMapping, Err: err}
	}
	return mapper, nil
}

// ConfigureServices lets every ServiceConfigurator register into services.
// Configurators are resolved from the host resolver first.
func (s *Sequencer) ConfigureServices(ctx context.Context, services *di.Collection) error {
	return invokeAll(ctx, s, s.manager.WithServices(s.host), PhaseServices, func(c extension.ServiceConfigurator) error {
		return c.ConfigureServices(services, s.host)
	})
}

// ConfigureApplication lets every ApplicationConfigurator configure app.
// Configurators are resolved from services first.
func (s *Sequencer) ConfigureApplication(ctx context.Context, app *pipeline.Builder, services di.Resolver) error {
	return invokeAll(ctx, s, s.manager.WithServices(services), PhaseApplication, func(c extension.ApplicationConfigurator) error {
		return c.ConfigureApplication(app, services)
	})
}

func invokeAll[C extension.Extension](ctx context.Context, s *Sequencer, m *extension.Manager, phase Phase, fn func(C) error) error {
	logger := logging.FromContext(ctx).With(slog.String("phase", string(phase)))

	resolved, err := extension.ResolveAll[C](m, s.queryOptions()...)
	if err != nil {
		return PhaseError{Phase: phase, Err: err}
	}
	logger.DebugContext(ctx, "phase started", slog.Int("extensions", len(resolved)))

	for _, r := range resolved {
		inv := Invocation{
			Phase:     phase,
			Extension: r.Type.Name(),
			Module:    r.Type.Module(),
			Priority:  r.Type.Priority(),
		}
		if s.observer != nil {
			s.observer(inv)
		}
		logger.DebugContext(ctx, "invoking extension",
			slog.String("extension", inv.Extension),
			slog.String("module", inv.Module),
			slog.Int("priority", inv.Priority),
		)
		if err := safeCall(fn, r.Instance); err != nil {
			logger.ErrorContext(ctx, "extension failed", slog.String("extension", inv.Extension), slog.Any("error", err))
			return PhaseError{Phase: phase, Extension: r.Type.String(), Err: err}
		}
	}
	return nil
}

func (s *Sequencer) queryOptions() []extension.QueryOption {
	var opts []extension.QueryOption
	if s.modules != nil {
		opts = append(opts, extension.InModules(s.modules))
	}
	if len(s.args) > 0 {
		opts = append(opts, extension.WithArgs(s.args...))
	}
	return opts
}

func safeCall[C any](fn func(C) error, v C) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrExtensionPanic, rec)
		}
	}()
	return fn(v)
}

func checkpoint(ctx context.Context, next Phase) error {
	if err := ctx.Err(); err != nil {
		return PhaseError{Phase: next, Err: err}
	}
	return nil
}
