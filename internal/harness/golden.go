package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/record"
)

// Snapshot is the golden view of a scenario run: unit summaries and the
// records the units wrote.
type Snapshot struct {
	Scenario string
	Units    []intake.Summary
	Records  []record.Record
}

// canonicalMap converts the snapshot to plain values for canonical JSON.
// Optional record fields are omitted when unset; an unknown old quantity
// is kept as null.
func (s *Snapshot) canonicalMap() map[string]any {
	units := make([]any, len(s.Units))
	for i, u := range s.Units {
		units[i] = map[string]any{
			"unit_id":        u.UnitID,
			"events":         u.Events,
			"applied":        u.Applied,
			"events_skipped": u.Skipped,
			"seen":           u.Stats.Seen,
			"committed":      u.Stats.Committed,
			"noops":          u.Stats.NoOps,
			"skipped":        u.Stats.Skipped,
			"failed":         u.Stats.Failed,
		}
	}

	records := make([]any, len(s.Records))
	for i, r := range s.Records {
		m := map[string]any{
			"id":           r.ID,
			"entity_id":    r.EntityID,
			"entity_name":  r.EntityName,
			"old_quantity": nil,
			"new_quantity": r.NewQuantity,
			"delta":        r.Delta,
			"change_kind":  string(r.Kind),
			"created_at":   r.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if r.OldQuantity != nil {
			m["old_quantity"] = *r.OldQuantity
		}
		if r.EntitySKU != "" {
			m["entity_sku"] = r.EntitySKU
		}
		if r.Reason != "" {
			m["reason"] = r.Reason
		}
		if r.ActorID != nil {
			m["actor_id"] = *r.ActorID
		}
		if r.OrderID != nil {
			m["order_id"] = *r.OrderID
		}
		if r.Origin != nil {
			m["origin"] = r.Origin.String()
		}
		if r.ClientAddress != "" {
			m["client_address"] = r.ClientAddress
		}
		if r.ClientAgent != "" {
			m["client_agent"] = r.ClientAgent
		}
		if r.UnitID != "" {
			m["unit_id"] = r.UnitID
		}
		records[i] = m
	}

	return map[string]any{
		"scenario": s.Scenario,
		"units":    units,
		"records":  records,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return marshalCanonical(s.canonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		Scenario: scenarioName,
		Units:    result.Units,
		Records:  result.Records,
	}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// GoldenPath returns the golden file path for a scenario under dir.
func GoldenPath(dir, scenarioName string) string {
	return filepath.Join(dir, scenarioName+".golden")
}

// CompareGolden reports whether result matches the golden file under dir.
// A missing golden file is an error.
func CompareGolden(dir, scenarioName string, result *Result) (bool, error) {
	want, err := os.ReadFile(GoldenPath(dir, scenarioName))
	if errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("golden file not found for %s (run with --update)", scenarioName)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}

	snapshot := Snapshot{Scenario: scenarioName, Units: result.Units, Records: result.Records}
	got, err := snapshot.MarshalCanonical()
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// WriteGolden writes result as the golden file under dir.
func WriteGolden(dir, scenarioName string, result *Result) error {
	snapshot := Snapshot{Scenario: scenarioName, Units: result.Units, Records: result.Records}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create golden dir: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, scenarioName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
