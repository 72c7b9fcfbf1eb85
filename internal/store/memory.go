package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

// MemoryOptions configures an in-memory store.
type MemoryOptions struct {
	Location *time.Location
	Now      func() time.Time
}

// Memory is an in-process record store with the same query semantics as
// the SQL backends. It is used by scenario tests and the "memory" driver.
type Memory struct {
	mu       sync.Mutex
	records  []record.Record
	settings *record.Settings
	loc      *time.Location
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts MemoryOptions) *Memory {
	m := &Memory{loc: opts.Location, now: opts.Now}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Insert appends a record. Timestamps are truncated to microseconds to
// match what the SQL backends keep.
func (m *Memory) Insert(ctx context.Context, d record.Draft) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, &PersistenceError{Op: "insert", EntityID: d.EntityID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return 0, &PersistenceError{Op: "insert", EntityID: d.EntityID, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now()
	}
	id := int64(len(m.records) + 1)
	m.records = append(m.records, d.Commit(id, d.CreatedAt.UTC().Truncate(time.Microsecond)))
	return id, nil
}

// LastQuantity returns the new quantity of the latest record for the entity.
func (m *Memory) LastQuantity(ctx context.Context, entityID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *record.Record
	for i := range m.records {
		r := &m.records[i]
		if r.EntityID != entityID {
			continue
		}
		if last == nil || r.CreatedAt.After(last.CreatedAt) ||
			(r.CreatedAt.Equal(last.CreatedAt) && r.ID > last.ID) {
			last = r
		}
	}
	if last == nil {
		return 0, false, nil
	}
	return last.NewQuantity, true, nil
}

// Query returns one page of matching records.
func (m *Memory) Query(ctx context.Context, f query.Filter, s query.Sort, p query.Page) (query.Result, error) {
	plan := query.Normalize(f, s, p, m.loc)

	m.mu.Lock()
	matched := make([]record.Record, 0, len(m.records))
	for _, r := range m.records {
		if plan.Where == nil || plan.Where.Match(r) {
			matched = append(matched, r)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return plan.Sort.Less(matched[i], matched[j])
	})

	total := int64(len(matched))
	start := plan.Page.Offset()
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := start + plan.Page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return query.NewResult(matched[start:end], total, plan.Page), nil
}

// Get returns the record with the given id.
func (m *Memory) Get(ctx context.Context, id int64) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || id > int64(len(m.records)) {
		return record.Record{}, fmt.Errorf("get record %d: %w", id, ErrNotFound)
	}
	return m.records[id-1], nil
}

// Records returns a copy of every record in insertion order.
func (m *Memory) Records() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]record.Record(nil), m.records...)
}

func (m *Memory) Settings(ctx context.Context) (record.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return record.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *Memory) SaveSettings(ctx context.Context, s record.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Memory) InitDefaults(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		s := record.DefaultSettings()
		m.settings = &s
	}
	return nil
}

// SchemaVersion always reports the current version.
func (m *Memory) SchemaVersion(ctx context.Context) (int, error) {
	return currentSchemaVersion, nil
}

func (m *Memory) Close() error {
	return nil
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Memory)(nil)
)
