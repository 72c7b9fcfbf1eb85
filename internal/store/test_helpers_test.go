package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stocklog/internal/record"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreWith(t, Options{})
}

func createTestStoreWith(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.DSN == "" {
		opts.DSN = filepath.Join(t.TempDir(), "test.db")
	}
	s, err := OpenWith(opts)
	if err != nil {
		t.Fatalf("OpenWith() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testClock returns a clock that advances one second per call from base.
func testClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

// createTestDraft creates a manual draft with a known baseline.
func createTestDraft(entityID int64, sku string, oldQty, newQty int64) record.Draft {
	return record.Draft{
		EntityID:    entityID,
		EntityName:  "Widget",
		EntitySKU:   sku,
		OldQuantity: record.Int64(oldQty),
		NewQuantity: newQty,
		Kind:        record.KindManual,
		Reason:      "Manual edit",
	}
}
