package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/provenance"
	"github.com/roach88/stocklog/internal/record"
	"github.com/roach88/stocklog/internal/store"
	"github.com/roach88/stocklog/internal/testutil"
)

// unitTracer reports the scenario and the running unit as the origin of
// every change, so traced runs stay deterministic.
type unitTracer struct {
	path string
	unit int
}

func (t *unitTracer) Locate() (record.Location, bool) {
	return record.Location{Path: t.path, Line: t.unit}, true
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store. The clock starts at
// testutil.DefaultEpoch and unit ids are unit-1, unit-2, ... so repeated
// runs produce identical records.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewDeterministicClock()

	mem := store.NewMemory(store.MemoryOptions{
		Location: scenario.location(),
		Now:      clock.Now,
	})
	defer mem.Close()

	if scenario.Settings != nil {
		if err := mem.SaveSettings(ctx, *scenario.Settings); err != nil {
			return nil, fmt.Errorf("failed to save settings: %w", err)
		}
	}

	for i, seed := range scenario.Seed {
		d, err := seed.draft()
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		if _, err := mem.Insert(ctx, d); err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
	}
	seeded := len(scenario.Seed)

	ids := make([]string, len(scenario.Units))
	for i := range ids {
		ids[i] = fmt.Sprintf("unit-%d", i+1)
	}

	tracer := &unitTracer{path: "scenario/" + scenario.Name}
	resolver := provenance.NewResolver(mem,
		provenance.WithTracer(tracer),
		provenance.WithLogger(logger),
	)
	engine := capture.New(mem, resolver,
		capture.WithLogger(logger),
		capture.WithIDGenerator(capture.NewFixedGenerator(ids...)),
	)
	hooks := capture.NewHooks(logger)
	engine.Register(hooks)
	applier := intake.NewApplier(engine, hooks, nil, logger)

	result := NewResult()
	for i, batch := range scenario.Units {
		tracer.unit = i + 1
		sum, err := applier.Apply(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i+1, err)
		}
		result.Units = append(result.Units, sum)
	}

	result.Records = append(result.Records, mem.Records()[seeded:]...)

	for _, msg := range checkExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}
