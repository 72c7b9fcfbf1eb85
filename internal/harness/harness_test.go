package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/record"
)

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Fixtures(t *testing.T) {
	for _, name := range []string{"order_lifecycle", "api_and_admin"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadFixture(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadFixture(t, "api_and_admin")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Units, second.Units)
}

func TestRun_ExcludesSeedRecords(t *testing.T) {
	result, err := Run(loadFixture(t, "order_lifecycle"))
	require.NoError(t, err)

	require.Len(t, result.Records, 3)
	assert.Equal(t, int64(2), result.Records[0].ID)
	assert.Equal(t, "unit-1", result.Records[0].UnitID)
	assert.Equal(t, "unit-2", result.Records[2].UnitID)
}

func TestRun_ReportsMismatches(t *testing.T) {
	records := 5
	reason := "Order #1"
	s := &Scenario{
		Name:        "mismatch",
		Description: "expectations that do not hold",
		Units: []intake.Batch{{Events: []intake.Event{{
			Type:   "entity.quantity_set",
			Entity: &intake.Entity{EntityID: 1, EntityName: "A", Qty: record.Int64(4)},
		}}}},
		Expect: Expectations{
			Records: &records,
			Changes: []ExpectedChange{
				{Kind: "order", Old: record.Int64(1), Reason: &reason},
				{EntityID: record.Int64(2)},
			},
			Units: []ExpectedUnit{{}, {}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	// records count, kind, old, reason, missing change, missing unit
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "Expected: 5 records")
	assert.Contains(t, result.Errors[1], "kind=order")
	assert.Contains(t, result.Errors[2], "old=-")
	assert.Contains(t, result.Errors[3], `reason="Manual edit"`)
	assert.Contains(t, result.Errors[4], "changes[1]")
	assert.Contains(t, result.Errors[5], "units[1]")
}

func TestRun_TimezoneAppliesToStore(t *testing.T) {
	s := loadFixture(t, "order_lifecycle")
	s.Timezone = "America/New_York"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
