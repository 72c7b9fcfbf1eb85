// Package intake decodes notification batches and applies them to the
// capture engine.
//
// A Batch is one processing unit: Apply begins a unit, fires each event in
// order through the hook registry, then ends the unit. Entity snapshots
// carried by events are added to the unit's catalog before the event fires,
// so id-only notifications resolve to the quantity the host reported.
//
// Batches arrive as JSON (HTTP, NATS) or YAML (files).
package intake
