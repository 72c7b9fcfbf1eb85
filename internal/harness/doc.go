// Package harness runs stock log conformance scenarios.
//
// A scenario is a YAML file describing settings, seed records and a list
// of processing units (each an intake batch). The harness applies every
// unit against a fresh in-memory store with a deterministic clock and
// fixed unit ids, then checks the records it produced against the
// scenario's expectations.
//
// Because runs are deterministic, the produced records can also be
// compared byte-for-byte against golden files:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden.
package harness
