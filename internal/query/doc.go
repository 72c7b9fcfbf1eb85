// Package query defines the filter, sort and pagination model for reading
// change records, plus a small predicate IR that every store backend shares.
//
// Predicates form a sealed set: only types in this package implement
// Predicate. Each predicate can be compiled to parameterized SQL by Compiler
// or evaluated directly against a record.Record, so the SQL backends and the
// in-memory store apply identical semantics.
//
// Parameter handling is strict: values are never interpolated into SQL text,
// and every compiled ORDER BY ends with an id tiebreaker so pages are stable.
//
// The read path is best-effort by design of its callers: Normalize clamps
// unknown sort keys, bad page numbers and malformed dates to defaults
// instead of returning errors.
package query
