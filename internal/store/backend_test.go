package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// backendFactories returns a constructor per available backend. Postgres is
// included when STOCKLOG_TEST_POSTGRES_DSN is set.
func backendFactories() map[string]func(t *testing.T, opts Options) Backend {
	factories := map[string]func(t *testing.T, opts Options) Backend{
		"sqlite3": func(t *testing.T, opts Options) Backend {
			opts.Driver = DriverSQLite3
			return createTestStoreWith(t, opts)
		},
		"sqlite": func(t *testing.T, opts Options) Backend {
			opts.Driver = DriverSQLite
			return createTestStoreWith(t, opts)
		},
		"memory": func(t *testing.T, opts Options) Backend {
			return NewMemory(MemoryOptions{Location: opts.Location, Now: opts.Now})
		},
	}
	if dsn := os.Getenv("STOCKLOG_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T, opts Options) Backend {
			opts.Driver = DriverPostgres
			opts.DSN = dsn
			s := createTestStoreWith(t, opts)
			resetPostgres(t, s)
			return s
		}
	}
	return factories
}

// resetPostgres recreates the tables so each test starts empty.
func resetPostgres(t *testing.T, s *Store) {
	t.Helper()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS stock_changes`,
		`DROP TABLE IF EXISTS stocklog_options`,
	} {
		_, err := s.db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, s.migrate(context.Background()))
}

func forEachBackend(t *testing.T, opts Options, fn func(t *testing.T, b Backend)) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			o := opts
			if o.Now == nil {
				o.Now = testClock(baseTime)
			}
			fn(t, factory(t, o))
		})
	}
}

func TestBackend_InsertAndGet(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		d := createTestDraft(42, "SKU-42", 10, 7)
		d.ActorID = record.Int64(3)
		d.OrderID = record.Int64(1001)
		d.Kind = record.KindOrder
		d.Reason = "Order #1001"
		d.ClientAddress = "203.0.113.9"
		d.ClientAgent = "curl/8.0"
		d.UnitID = "unit-1"
		d.Origin = &record.Location{Path: "app/orders.go", Line: 88}

		id, err := b.Insert(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		got, err := b.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.EntityID)
		assert.Equal(t, "SKU-42", got.EntitySKU)
		require.NotNil(t, got.OldQuantity)
		assert.Equal(t, int64(10), *got.OldQuantity)
		assert.Equal(t, int64(7), got.NewQuantity)
		assert.Equal(t, int64(-3), got.Delta)
		assert.Equal(t, record.KindOrder, got.Kind)
		assert.Equal(t, "Order #1001", got.Reason)
		assert.Equal(t, record.Int64(3), got.ActorID)
		assert.Equal(t, record.Int64(1001), got.OrderID)
		assert.Equal(t, "203.0.113.9", got.ClientAddress)
		assert.Equal(t, "curl/8.0", got.ClientAgent)
		assert.Equal(t, "unit-1", got.UnitID)
		assert.Equal(t, &record.Location{Path: "app/orders.go", Line: 88}, got.Origin)
		assert.True(t, baseTime.Equal(got.CreatedAt), "created_at = %v", got.CreatedAt)
	})
}

func TestBackend_InsertUnknownBaseline(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		d := createTestDraft(5, "", 0, 12)
		d.OldQuantity = nil

		id, err := b.Insert(ctx, d)
		require.NoError(t, err)

		got, err := b.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.OldQuantity)
		assert.Equal(t, int64(0), got.Delta)
		assert.Empty(t, got.EntitySKU)
		assert.Nil(t, got.ActorID)
		assert.Nil(t, got.Origin)
	})
}

func TestBackend_InsertRejectsInvalidDraft(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		_, err := b.Insert(ctx, createTestDraft(0, "X", 1, 2))
		require.Error(t, err)

		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "insert", perr.Op)

		var verr *record.ValidationError
		assert.True(t, errors.As(err, &verr))

		res, err := b.Query(ctx, query.Filter{}, query.Sort{}, query.Page{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.TotalItems)
	})
}

func TestBackend_GetMissing(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		_, err := b.Get(context.Background(), 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBackend_LastQuantity(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		_, ok, err := b.LastQuantity(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok, "no records yet")

		for _, qty := range []int64{5, 8, 6} {
			_, err := b.Insert(ctx, createTestDraft(1, "A", 0, qty))
			require.NoError(t, err)
		}
		_, err = b.Insert(ctx, createTestDraft(2, "B", 0, 100))
		require.NoError(t, err)

		qty, ok, err := b.LastQuantity(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(6), qty)
	})
}

func TestBackend_LastQuantityTieBreaksOnID(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		for _, qty := range []int64{3, 9} {
			d := createTestDraft(1, "A", 0, qty)
			d.CreatedAt = baseTime
			_, err := b.Insert(ctx, d)
			require.NoError(t, err)
		}

		qty, ok, err := b.LastQuantity(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(9), qty)
	})
}

func TestBackend_Pagination(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		for i := 0; i < 25; i++ {
			_, err := b.Insert(ctx, createTestDraft(int64(i+1), "ABC", 0, int64(i)))
			require.NoError(t, err)
		}

		first, err := b.Query(ctx, query.Filter{SKU: "ABC"}, query.Sort{}, query.Page{Size: 20, Number: 1})
		require.NoError(t, err)
		assert.Len(t, first.Records, 20)
		assert.Equal(t, int64(25), first.TotalItems)
		assert.Equal(t, int64(2), first.TotalPages)
		assert.Equal(t, 1, first.CurrentPage)
		// Default sort is newest first.
		assert.Equal(t, int64(25), first.Records[0].ID)

		second, err := b.Query(ctx, query.Filter{SKU: "ABC"}, query.Sort{}, query.Page{Size: 20, Number: 2})
		require.NoError(t, err)
		assert.Len(t, second.Records, 5)
		assert.Equal(t, int64(2), second.TotalPages)
		assert.Equal(t, int64(1), second.Records[4].ID)

		beyond, err := b.Query(ctx, query.Filter{}, query.Sort{}, query.Page{Size: 20, Number: 9})
		require.NoError(t, err)
		assert.Empty(t, beyond.Records)
		assert.NotNil(t, beyond.Records)
		assert.Equal(t, int64(25), beyond.TotalItems)

		huge, err := b.Query(ctx, query.Filter{}, query.Sort{}, query.Page{Size: 20, Number: math.MaxInt})
		require.NoError(t, err)
		assert.Empty(t, huge.Records)
		assert.Equal(t, int64(25), huge.TotalItems)
		assert.Equal(t, query.MaxPageNumber, huge.CurrentPage)
	})
}

func TestBackend_Filters(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		drafts := []record.Draft{
			{EntityID: 1, EntityName: "Blue Shirt", EntitySKU: "SH-BLU", NewQuantity: 4, Kind: record.KindManual},
			{EntityID: 2, EntityName: "Red Shirt", EntitySKU: "SH-RED", NewQuantity: 2, Kind: record.KindOrder},
			{EntityID: 2, EntityName: "Red Shirt", EntitySKU: "SH-RED", NewQuantity: 5, Kind: record.KindRestore},
			{EntityID: 3, EntityName: "50% Off Mug", EntitySKU: "MUG_1", NewQuantity: 1, Kind: record.KindProgrammatic},
		}
		for _, d := range drafts {
			_, err := b.Insert(ctx, d)
			require.NoError(t, err)
		}

		tests := []struct {
			name   string
			filter query.Filter
			want   []int64
		}{
			{"no filter", query.Filter{}, []int64{4, 3, 2, 1}},
			{"entity", query.Filter{EntityID: 2}, []int64{3, 2}},
			{"sku substring", query.Filter{SKU: "sh-"}, []int64{3, 2, 1}},
			{"name case-insensitive", query.Filter{Name: "shirt"}, []int64{3, 2, 1}},
			{"percent is literal", query.Filter{Name: "50%"}, []int64{4}},
			{"underscore is literal", query.Filter{SKU: "G_1"}, []int64{4}},
			{"underscore does not wildcard", query.Filter{SKU: "SH_"}, nil},
			{"kind", query.Filter{Kind: "order"}, []int64{2}},
			{"legacy kind", query.Filter{Kind: "rest_api"}, []int64{4}},
			{"unknown kind", query.Filter{Kind: "bogus"}, nil},
			{"combined", query.Filter{EntityID: 2, Kind: "restore"}, []int64{3}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := b.Query(ctx, tt.filter, query.Sort{}, query.Page{})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(res.Records))
				assert.Equal(t, int64(len(tt.want)), res.TotalItems)
			})
		}
	})
}

func TestBackend_FiltersFoldNonASCII(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		for _, d := range []record.Draft{
			{EntityID: 1, EntityName: "Éclair Box", EntitySKU: "ÉCL-1", NewQuantity: 2, Kind: record.KindManual},
			{EntityID: 2, EntityName: "Street Sign", EntitySKU: "STR-1", NewQuantity: 1, Kind: record.KindManual},
		} {
			_, err := b.Insert(ctx, d)
			require.NoError(t, err)
		}

		tests := []struct {
			name   string
			filter query.Filter
			want   []int64
		}{
			{"lower accented name", query.Filter{Name: "éclair"}, []int64{1}},
			{"upper accented name", query.Filter{Name: "ÉCLAIR BOX"}, []int64{1}},
			{"accented sku", query.Filter{SKU: "écl"}, []int64{1}},
			{"other entity", query.Filter{Name: "sign"}, []int64{2}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := b.Query(ctx, tt.filter, query.Sort{}, query.Page{})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(res.Records))
			})
		}
	})
}

func TestBackend_DateRange(t *testing.T) {
	// Records land at 23:59:59 on March 1 and 00:00:00 on March 2 (UTC).
	start := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)

	forEachBackend(t, Options{Now: testClock(start)}, func(t *testing.T, b Backend) {
		ctx := context.Background()
		for i := 1; i <= 2; i++ {
			_, err := b.Insert(ctx, createTestDraft(int64(i), "D", 0, 1))
			require.NoError(t, err)
		}

		tests := []struct {
			name   string
			filter query.Filter
			want   []int64
		}{
			{"single day includes end of day", query.Filter{DateFrom: "2024-03-01", DateTo: "2024-03-01"}, []int64{1}},
			{"next day starts at midnight", query.Filter{DateFrom: "2024-03-02"}, []int64{2}},
			{"to only", query.Filter{DateTo: "2024-03-01"}, []int64{1}},
			{"both days", query.Filter{DateFrom: "2024-03-01", DateTo: "2024-03-02"}, []int64{2, 1}},
			{"malformed date ignored", query.Filter{DateFrom: "March 2"}, []int64{2, 1}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := b.Query(ctx, tt.filter, query.Sort{}, query.Page{})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(res.Records))
			})
		}
	})
}

func TestBackend_DateRangeUsesLocation(t *testing.T) {
	// 23:00 UTC on March 1 is 01:00 on March 2 two hours east.
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	forEachBackend(t, Options{Location: loc, Now: testClock(at)}, func(t *testing.T, b Backend) {
		ctx := context.Background()
		_, err := b.Insert(ctx, createTestDraft(1, "L", 0, 1))
		require.NoError(t, err)

		res, err := b.Query(ctx, query.Filter{DateFrom: "2024-03-02", DateTo: "2024-03-02"}, query.Sort{}, query.Page{})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids(res.Records))

		res, err = b.Query(ctx, query.Filter{DateTo: "2024-03-01"}, query.Sort{}, query.Page{})
		require.NoError(t, err)
		assert.Empty(t, res.Records)
	})
}

func TestBackend_Sorting(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		withOld := func(id int64, old *int64, qty int64) record.Draft {
			d := createTestDraft(id, fmt.Sprintf("S%d", id), 0, qty)
			d.OldQuantity = old
			return d
		}
		for _, d := range []record.Draft{
			withOld(1, record.Int64(5), 3),
			withOld(2, nil, 9),
			withOld(3, record.Int64(1), 3),
		} {
			_, err := b.Insert(ctx, d)
			require.NoError(t, err)
		}

		tests := []struct {
			name string
			sort query.Sort
			want []int64
		}{
			{"default newest first", query.Sort{}, []int64{3, 2, 1}},
			{"created ascending", query.ParseSort("created_at", "ASC"), []int64{1, 2, 3}},
			{"unknown field falls back", query.ParseSort("password", "asc"), []int64{1, 2, 3}},
			{"new quantity ties on id", query.ParseSort("new_quantity", "asc"), []int64{1, 3, 2}},
			{"new quantity desc ties on id", query.ParseSort("new_quantity", "desc"), []int64{2, 3, 1}},
			{"unknown baseline first ascending", query.ParseSort("old_quantity", "asc"), []int64{2, 3, 1}},
			{"unknown baseline last descending", query.ParseSort("old_quantity", "desc"), []int64{1, 3, 2}},
			{"id descending", query.ParseSort("id", "desc"), []int64{3, 2, 1}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := b.Query(ctx, query.Filter{}, tt.sort, query.Page{})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(res.Records))
			})
		}
	})
}

func TestBackend_Settings(t *testing.T) {
	forEachBackend(t, Options{}, func(t *testing.T, b Backend) {
		ctx := context.Background()

		s, err := b.Settings(ctx)
		require.NoError(t, err)
		assert.Equal(t, record.DefaultSettings(), s)

		require.NoError(t, b.InitDefaults(ctx))
		s, err = b.Settings(ctx)
		require.NoError(t, err)
		assert.False(t, s.TraceOrigin)

		require.NoError(t, b.SaveSettings(ctx, record.Settings{TraceOrigin: true}))
		// InitDefaults never overwrites stored settings.
		require.NoError(t, b.InitDefaults(ctx))

		s, err = b.Settings(ctx)
		require.NoError(t, err)
		assert.True(t, s.TraceOrigin)
	})
}

func ids(records []record.Record) []int64 {
	var out []int64
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
