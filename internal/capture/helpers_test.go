package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/stocklog/internal/provenance"
	"github.com/roach88/stocklog/internal/record"
	"github.com/roach88/stocklog/internal/store"
	"github.com/roach88/stocklog/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine wires an engine to a fresh memory store with a
// deterministic clock.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Memory) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	mem := store.NewMemory(store.MemoryOptions{Now: clock.Now})
	base := []Option{WithLogger(quietLogger())}
	return New(mem, provenance.NewResolver(mem), append(base, opts...)...), mem
}

// failingStore rejects every insert.
type failingStore struct {
	inserts int
	last    map[int64]int64
}

func (f *failingStore) Insert(ctx context.Context, d record.Draft) (int64, error) {
	f.inserts++
	return 0, &store.PersistenceError{Op: "insert", EntityID: d.EntityID, Err: errors.New("disk full")}
}

func (f *failingStore) LastQuantity(ctx context.Context, id int64) (int64, bool, error) {
	q, ok := f.last[id]
	return q, ok, nil
}

// brokenReadStore fails LastQuantity but accepts inserts.
type brokenReadStore struct {
	*store.Memory
}

func (b brokenReadStore) LastQuantity(ctx context.Context, id int64) (int64, bool, error) {
	return 0, false, errors.New("connection reset")
}

type fixedTracer struct {
	loc record.Location
}

func (f fixedTracer) Locate() (record.Location, bool) {
	return f.loc, true
}

func entity(id int64, qty int64) *testutil.Entity {
	return testutil.NewEntity(id, "Widget", "W-1", qty)
}
