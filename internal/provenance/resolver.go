package provenance

import (
	"context"
	"log/slog"

	"github.com/roach88/stocklog/internal/record"
)

// SettingsSource reads the persisted capture settings.
type SettingsSource interface {
	Settings(ctx context.Context) (record.Settings, error)
}

// Resolver classifies changes and, when tracing is enabled, locates them.
type Resolver struct {
	settings SettingsSource
	tracer   Tracer
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTracer sets the tracer used when tracing is enabled.
// Default: NopTracer.
func WithTracer(t Tracer) ResolverOption {
	return func(r *Resolver) {
		r.tracer = t
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver. A nil settings source disables tracing.
func NewResolver(settings SettingsSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		settings: settings,
		tracer:   NopTracer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies c and returns the origin location when tracing is on:
// the origin carried by ctx if any, else whatever the Tracer finds.
func (r *Resolver) Resolve(ctx context.Context, c Context) (Classification, *record.Location) {
	cls := Classify(c)
	if !r.tracing(ctx) {
		return cls, nil
	}
	if loc, ok := OriginFrom(ctx); ok {
		return cls, &loc
	}
	loc, ok := r.tracer.Locate()
	if !ok {
		return cls, nil
	}
	return cls, &loc
}

// tracing reads the settings. A read failure turns tracing off.
func (r *Resolver) tracing(ctx context.Context) bool {
	if r.settings == nil {
		return false
	}
	s, err := r.settings.Settings(ctx)
	if err != nil {
		r.logger.Warn("read settings failed, origin tracing disabled", "error", err)
		return false
	}
	return s.TraceOrigin
}
