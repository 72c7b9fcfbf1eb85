// Package store provides durable, append-only storage for stock change records.
//
// The store keeps two tables:
//   - stock_changes: one immutable row per committed change
//   - stocklog_options: name/value pairs (settings and the schema version)
//
// # Critical Patterns
//
// Append-only:
//   - No code path issues UPDATE or DELETE against stock_changes
//   - SQLite databases additionally carry triggers that abort such statements
//
// Deterministic ordering:
//   - "Most recent" means ORDER BY created_at DESC, id DESC
//   - Every paged query ends its ORDER BY with id in the sort direction
//
// Additive migrations:
//   - The db_version option drives migrations on every Open
//   - Migrations only add tables, nullable columns and indexes
//   - Each step checks for existing columns, so re-running is a no-op
//
// # Backends
//
//   - sqlite3: github.com/mattn/go-sqlite3 (default, cgo)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - postgres: github.com/lib/pq
//   - memory: in-process Memory store with the same semantics, for tests
//
// SQLite connections use WAL mode, synchronous=NORMAL and a 5 second busy
// timeout, and the pool is limited to one connection (single writer).
package store
