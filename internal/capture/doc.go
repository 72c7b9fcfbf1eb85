// Package capture implements the stock change-capture engine.
//
// The host fires notifications at several points in its own lifecycle.
// "Before" notifications only snapshot quantities into the unit's baseline
// map. "After" notifications run Evaluate, which diffs the entity's current
// quantity against the baseline and commits at most one record per real
// change.
//
// ARCHITECTURE:
//
// Per-Unit State:
// All transient state lives in a Unit created by Engine.Begin and torn down
// by Unit.End. A Unit is one request, job or message. Units never share
// baselines, so two unrelated units touching the same entity only meet
// through the record store's LastQuantity fallback.
//
// Evaluate:
//  1. old = unit baseline, else store LastQuantity, else unknown
//  2. old == new: no-op, nothing written, baseline untouched
//  3. otherwise classify, insert, and set baseline = new
//
// The baseline is refreshed even when the insert fails. The change already
// happened in the host; the log only observes it.
//
// Failure Policy:
// No operation returns an error to the host. Malformed notifications are
// skipped, persistence failures are logged at error level and counted on
// the unit.
//
// Thread-safety: an Engine is safe for concurrent use by many units. A Unit
// must be confined to one goroutine, like the request it belongs to.
package capture
