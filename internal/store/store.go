package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

// Schema version tracking (stored as the db_version option):
// 0 - Empty database
// 1 - stock_changes and stocklog_options tables with indexes
// 2 - Added origin_path, origin_line (source location capture)
// 3 - Added unit_id (processing unit correlation)
const currentSchemaVersion = 4

const versionOption = "db_version"

// Backend is the full record store surface used by the CLI and server.
// Store and Memory both implement it.
type Backend interface {
	Insert(ctx context.Context, d record.Draft) (int64, error)
	LastQuantity(ctx context.Context, entityID int64) (int64, bool, error)
	Query(ctx context.Context, f query.Filter, s query.Sort, p query.Page) (query.Result, error)
	Get(ctx context.Context, id int64) (record.Record, error)
	Settings(ctx context.Context) (record.Settings, error)
	SaveSettings(ctx context.Context, s record.Settings) error
	InitDefaults(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// Options configures a store.
type Options struct {
	// Driver is one of sqlite3 (default), sqlite, postgres or memory.
	Driver string

	// DSN is the database path (SQLite) or connection string (Postgres).
	DSN string

	// Location interprets calendar-day filters. Defaults to UTC.
	Location *time.Location

	// Now supplies commit timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is a SQL-backed record store.
type Store struct {
	db  *sql.DB
	d   *dialect
	loc *time.Location
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path using the
// mattn/go-sqlite3 driver. Applies pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	return OpenWith(Options{Driver: DriverSQLite3, DSN: path})
}

// OpenBackend opens the backend selected by opts.Driver, including the
// in-memory store.
func OpenBackend(opts Options) (Backend, error) {
	if opts.Driver == DriverMemory {
		return NewMemory(MemoryOptions{Location: opts.Location, Now: opts.Now}), nil
	}
	return OpenWith(opts)
}

// OpenWith opens a SQL backend and applies migrations.
func OpenWith(opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite3
	}
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if d.driver != DriverPostgres {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := applyPragmas(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, d: d, loc: opts.Location, now: opts.Now}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.d.driver
}

func applyPragmas(db *sql.DB, d *dialect) error {
	for _, pragma := range d.pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	value, ok, err := s.option(ctx, versionOption)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", value, err)
	}
	return version, nil
}

// migrate applies incremental schema migrations based on db_version.
// Every step is additive and safe to re-run.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.optionsTable); err != nil {
		return fmt.Errorf("create options table: %w", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if version < 1 {
		if err := s.migrateToV1(ctx); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateToV2(ctx); err != nil {
			return err
		}
	}
	if version < 3 {
		if err := s.migrateToV3(ctx); err != nil {
			return err
		}
	}
	if version < 4 {
		if err := s.migrateToV4(ctx); err != nil {
			return err
		}
	}

	if version != currentSchemaVersion {
		if err := s.setOption(ctx, versionOption, fmt.Sprintf("%d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// migrateToV1 creates the records table, its indexes and append-only guards.
func (s *Store) migrateToV1(ctx context.Context) error {
	stmts := []string{
		s.d.recordsTable,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_entity ON stock_changes(entity_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_sku ON stock_changes(entity_sku)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_name ON stock_changes(entity_name)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_created ON stock_changes(created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_kind ON stock_changes(change_kind)`,
	}
	stmts = append(stmts, s.d.triggers...)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// migrateToV2 adds the optional source location columns.
func (s *Store) migrateToV2(ctx context.Context) error {
	if err := s.addColumn(ctx, "stock_changes", "origin_path", "TEXT"); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if err := s.addColumn(ctx, "stock_changes", "origin_line", "INTEGER"); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// migrateToV3 adds the processing unit id column.
func (s *Store) migrateToV3(ctx context.Context) error {
	if err := s.addColumn(ctx, "stock_changes", "unit_id", "TEXT"); err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_stock_changes_unit ON stock_changes(unit_id)`,
	); err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	return nil
}

// migrateToV4 adds case-folded copies of name and SKU for substring
// filters. Older rows keep them NULL.
func (s *Store) migrateToV4(ctx context.Context) error {
	for _, col := range []string{"entity_name_fold", "entity_sku_fold"} {
		if err := s.addColumn(ctx, "stock_changes", col, "TEXT"); err != nil {
			return fmt.Errorf("migrate to v4: %w", err)
		}
	}
	return nil
}

// addColumn adds a nullable column unless it already exists.
func (s *Store) addColumn(ctx context.Context, table, column, typ string) error {
	exists, err := s.d.columnExists(ctx, s.db, table, column)
	if err != nil {
		return fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}
