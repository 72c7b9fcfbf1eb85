package provenance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/stocklog/internal/record"
)

type fakeSettings struct {
	settings record.Settings
	err      error
}

func (f fakeSettings) Settings(context.Context) (record.Settings, error) {
	return f.settings, f.err
}

type fixedTracer struct {
	loc   record.Location
	calls *int
}

func (f fixedTracer) Locate() (record.Location, bool) {
	*f.calls++
	return f.loc, true
}

func TestResolver_TracingOff(t *testing.T) {
	calls := 0
	r := NewResolver(fakeSettings{}, WithTracer(fixedTracer{calls: &calls}))

	cls, loc := r.Resolve(context.Background(), Context{Admin: true})

	assert.Equal(t, record.KindManual, cls.Kind)
	assert.Nil(t, loc)
	assert.Zero(t, calls, "tracer must not run when tracing is off")
}

func TestResolver_TracingOn(t *testing.T) {
	calls := 0
	want := record.Location{Path: "app/stock.go", Line: 12}
	r := NewResolver(
		fakeSettings{settings: record.Settings{TraceOrigin: true}},
		WithTracer(fixedTracer{loc: want, calls: &calls}),
	)

	cls, loc := r.Resolve(context.Background(), Context{OrderReduce: true, OrderID: record.Int64(9)})

	assert.Equal(t, "Order #9", cls.Reason)
	assert.Equal(t, &want, loc)
	assert.Equal(t, 1, calls)
}

func TestResolver_PrefersContextOrigin(t *testing.T) {
	calls := 0
	host := record.Location{Path: "wp-content/plugins/sync/import.php", Line: 88}
	r := NewResolver(
		fakeSettings{settings: record.Settings{TraceOrigin: true}},
		WithTracer(fixedTracer{loc: record.Location{Path: "stack.go", Line: 1}, calls: &calls}),
	)

	_, loc := r.Resolve(WithOrigin(context.Background(), host), Context{})
	assert.Equal(t, &host, loc)
	assert.Zero(t, calls)

	// An empty path falls back to the tracer.
	_, loc = r.Resolve(WithOrigin(context.Background(), record.Location{Line: 3}), Context{})
	assert.Equal(t, &record.Location{Path: "stack.go", Line: 1}, loc)
	assert.Equal(t, 1, calls)
}

func TestResolver_ContextOriginIgnoredWhenTracingOff(t *testing.T) {
	r := NewResolver(fakeSettings{})

	_, loc := r.Resolve(WithOrigin(context.Background(), record.Location{Path: "a.php", Line: 1}), Context{})
	assert.Nil(t, loc)
}

func TestResolver_TracingOnWithNopTracer(t *testing.T) {
	r := NewResolver(fakeSettings{settings: record.Settings{TraceOrigin: true}})

	_, loc := r.Resolve(context.Background(), Context{})
	assert.Nil(t, loc)
}

func TestResolver_SettingsErrorDisablesTracing(t *testing.T) {
	calls := 0
	r := NewResolver(
		fakeSettings{settings: record.Settings{TraceOrigin: true}, err: errors.New("db locked")},
		WithTracer(fixedTracer{calls: &calls}),
	)

	cls, loc := r.Resolve(context.Background(), Context{})

	assert.Equal(t, ReasonManual, cls.Reason)
	assert.Nil(t, loc)
	assert.Zero(t, calls)
}

func TestResolver_NilSettings(t *testing.T) {
	r := NewResolver(nil)
	_, loc := r.Resolve(context.Background(), Context{})
	assert.Nil(t, loc)
}
