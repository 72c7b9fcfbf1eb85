package provenance

import (
	"context"

	"github.com/roach88/stocklog/internal/record"
)

type originKey struct{}

// WithOrigin returns a context carrying a host-reported origin. When
// tracing is on the Resolver prefers it over its Tracer.
func WithOrigin(ctx context.Context, loc record.Location) context.Context {
	return context.WithValue(ctx, originKey{}, loc)
}

// OriginFrom returns the host-reported origin carried by ctx. A location
// without a path is treated as absent.
func OriginFrom(ctx context.Context) (record.Location, bool) {
	loc, ok := ctx.Value(originKey{}).(record.Location)
	if !ok || loc.Path == "" {
		return record.Location{}, false
	}
	return loc, true
}
