package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/stocklog/internal/query"
)

// Supported driver names.
const (
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// sqliteTimeLayout is fixed width so lexical order equals time order and
// day-range filters can use the created_at index.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// dialect captures the SQL differences between backends.
type dialect struct {
	driver   string
	numbered bool
	ilike    bool
	pragmas  []string

	optionsTable string
	recordsTable string
	triggers     []string

	encodeTime   func(time.Time) any
	columnExists func(ctx context.Context, db *sql.DB, table, column string) (bool, error)
}

func dialectFor(driver string) (*dialect, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return sqliteDialect(driver), nil
	case DriverPostgres:
		return postgresDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q: must be sqlite3, sqlite, postgres or memory", driver)
	}
}

func sqliteDialect(driver string) *dialect {
	return &dialect{
		driver: driver,
		pragmas: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		},
		optionsTable: `
			CREATE TABLE IF NOT EXISTS stocklog_options (
				name  TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		recordsTable: `
			CREATE TABLE IF NOT EXISTS stock_changes (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				entity_id      INTEGER NOT NULL CHECK (entity_id > 0),
				entity_name    TEXT    NOT NULL DEFAULT '',
				entity_sku     TEXT,
				old_quantity   INTEGER,
				new_quantity   INTEGER NOT NULL,
				delta          INTEGER NOT NULL DEFAULT 0,
				change_kind    TEXT    NOT NULL,
				reason         TEXT,
				actor_id       INTEGER,
				order_id       INTEGER,
				client_address TEXT,
				client_agent   TEXT,
				created_at     TEXT    NOT NULL
			)`,
		triggers: []string{
			`CREATE TRIGGER IF NOT EXISTS stock_changes_no_update
			BEFORE UPDATE ON stock_changes
			BEGIN SELECT RAISE(ABORT, 'stock_changes is append-only'); END`,
			`CREATE TRIGGER IF NOT EXISTS stock_changes_no_delete
			BEFORE DELETE ON stock_changes
			BEGIN SELECT RAISE(ABORT, 'stock_changes is append-only'); END`,
		},
		encodeTime: func(t time.Time) any {
			return t.UTC().Format(sqliteTimeLayout)
		},
		columnExists: func(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
			var n int
			err := db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
			).Scan(&n)
			return n > 0, err
		},
	}
}

func postgresDialect() *dialect {
	return &dialect{
		driver:   DriverPostgres,
		numbered: true,
		ilike:    true,
		optionsTable: `
			CREATE TABLE IF NOT EXISTS stocklog_options (
				name  TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		recordsTable: `
			CREATE TABLE IF NOT EXISTS stock_changes (
				id             BIGSERIAL PRIMARY KEY,
				entity_id      BIGINT      NOT NULL CHECK (entity_id > 0),
				entity_name    TEXT        NOT NULL DEFAULT '',
				entity_sku     TEXT,
				old_quantity   BIGINT,
				new_quantity   BIGINT      NOT NULL,
				delta          BIGINT      NOT NULL DEFAULT 0,
				change_kind    TEXT        NOT NULL,
				reason         TEXT,
				actor_id       BIGINT,
				order_id       BIGINT,
				client_address TEXT,
				client_agent   TEXT,
				created_at     TIMESTAMPTZ NOT NULL
			)`,
		encodeTime: func(t time.Time) any {
			return t.UTC()
		},
		columnExists: func(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
			var n int
			err := db.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM information_schema.columns
				WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
			`, table, column).Scan(&n)
			return n > 0, err
		},
	}
}

// compiler returns a fresh query compiler configured for this dialect.
func (d *dialect) compiler() *query.Compiler {
	return &query.Compiler{
		Numbered:   d.numbered,
		ILike:      d.ilike,
		EncodeTime: d.encodeTime,
	}
}

// decodeTime converts a scanned created_at value back into UTC time.
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseStoredTime(t)
	case []byte:
		return parseStoredTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err == nil {
		return t, nil
	}
	// Rows written by other tools may carry an RFC 3339 timestamp.
	t, rfcErr := time.Parse(time.RFC3339Nano, s)
	if rfcErr != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
