package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/record"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone is the site timezone for day filters. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Settings are stored before any unit runs. Nil keeps the defaults.
	Settings *record.Settings `yaml:"settings,omitempty"`

	// Seed records are written before the units, as earlier history.
	Seed []SeedRecord `yaml:"seed,omitempty"`

	// Units are applied in order, each as one processing unit.
	Units []intake.Batch `yaml:"units"`

	Expect Expectations `yaml:"expect"`
}

// SeedRecord is a record written straight to the store.
type SeedRecord struct {
	EntityID    int64  `yaml:"entity_id"`
	EntityName  string `yaml:"entity_name"`
	EntitySKU   string `yaml:"entity_sku,omitempty"`
	OldQuantity *int64 `yaml:"old_quantity,omitempty"`
	NewQuantity int64  `yaml:"new_quantity"`
	Kind        string `yaml:"kind"`
	Reason      string `yaml:"reason,omitempty"`
}

// Expectations validate the records and unit summaries a scenario produced.
// Seed records are not part of either.
type Expectations struct {
	// Records is the expected number of records written by the units.
	Records *int `yaml:"records,omitempty"`

	// Changes are matched in order against the written records; only the
	// fields that are set are compared.
	Changes []ExpectedChange `yaml:"changes,omitempty"`

	// Units are matched in order against the unit summaries.
	Units []ExpectedUnit `yaml:"units,omitempty"`
}

// ExpectedChange is a subset match on one record.
type ExpectedChange struct {
	EntityID   *int64  `yaml:"entity_id,omitempty"`
	Kind       string  `yaml:"kind,omitempty"`
	Old        *int64  `yaml:"old,omitempty"`
	OldUnknown bool    `yaml:"old_unknown,omitempty"`
	New        *int64  `yaml:"new,omitempty"`
	Delta      *int64  `yaml:"delta,omitempty"`
	Reason     *string `yaml:"reason,omitempty"`
	OrderID    *int64  `yaml:"order_id,omitempty"`
	Origin     *string `yaml:"origin,omitempty"`
}

// ExpectedUnit is a subset match on one unit's outcome counters.
type ExpectedUnit struct {
	Committed *int `yaml:"committed,omitempty"`
	NoOps     *int `yaml:"noops,omitempty"`
	Skipped   *int `yaml:"skipped,omitempty"`
	Failed    *int `yaml:"failed,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Units) == 0 {
		return fmt.Errorf("units list is required and must be non-empty")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	for i, seed := range s.Seed {
		if seed.EntityID <= 0 {
			return fmt.Errorf("seed[%d]: entity_id must be greater than zero", i)
		}
		if _, err := record.ParseKind(seed.Kind); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	for i, unit := range s.Units {
		if len(unit.Events) == 0 {
			return fmt.Errorf("units[%d]: events list is required and must be non-empty", i)
		}
		for j, ev := range unit.Events {
			if ev.Type == "" {
				return fmt.Errorf("units[%d].events[%d]: type is required", i, j)
			}
		}
	}

	for i, c := range s.Expect.Changes {
		if c.Kind != "" {
			if _, err := record.ParseKind(c.Kind); err != nil {
				return fmt.Errorf("expect.changes[%d]: %w", i, err)
			}
		}
		if c.OldUnknown && c.Old != nil {
			return fmt.Errorf("expect.changes[%d]: old and old_unknown are exclusive", i)
		}
	}
	return nil
}

// location returns the scenario timezone.
func (s *Scenario) location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r SeedRecord) draft() (record.Draft, error) {
	kind, err := record.ParseKind(r.Kind)
	if err != nil {
		return record.Draft{}, err
	}
	return record.Draft{
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		EntitySKU:   r.EntitySKU,
		OldQuantity: r.OldQuantity,
		NewQuantity: r.NewQuantity,
		Kind:        kind,
		Reason:      r.Reason,
	}, nil
}
