package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/stocklog/internal/record"
)

// AssertionError is a failed expectation with enough context to debug it.
type AssertionError struct {
	What     string
	Expected string
	Actual   string
	Records  []record.Record
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.What)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Records) > 0 {
		fmt.Fprintf(&buf, "\nRecords:\n")
		for _, r := range e.Records {
			fmt.Fprintf(&buf, "  [%d] entity %d %s -> %d (%s) %s %q\n",
				r.ID, r.EntityID, record.FormatQuantity(r.OldQuantity), r.NewQuantity,
				record.FormatDelta(r.Delta), r.Kind, r.Reason)
		}
	}
	return buf.String()
}

// checkExpectations returns one message per failed expectation.
func checkExpectations(result *Result, expect Expectations) []string {
	var errs []string
	fail := func(what, expected, actual string) {
		errs = append(errs, (&AssertionError{
			What:     what,
			Expected: expected,
			Actual:   actual,
			Records:  result.Records,
		}).Error())
	}

	if expect.Records != nil && *expect.Records != len(result.Records) {
		fail("records", fmt.Sprintf("%d records", *expect.Records), fmt.Sprintf("%d records", len(result.Records)))
	}

	for i, want := range expect.Changes {
		what := fmt.Sprintf("changes[%d]", i)
		if i >= len(result.Records) {
			fail(what, "a record", "none")
			continue
		}
		for _, msg := range matchChange(result.Records[i], want) {
			fail(what, msg[0], msg[1])
		}
	}

	for i, want := range expect.Units {
		what := fmt.Sprintf("units[%d]", i)
		if i >= len(result.Units) {
			fail(what, "a unit", "none")
			continue
		}
		got := result.Units[i].Stats
		checkInt := func(name string, want *int, got int) {
			if want != nil && *want != got {
				fail(what, fmt.Sprintf("%s=%d", name, *want), fmt.Sprintf("%s=%d", name, got))
			}
		}
		checkInt("committed", want.Committed, got.Committed)
		checkInt("noops", want.NoOps, got.NoOps)
		checkInt("skipped", want.Skipped, got.Skipped)
		checkInt("failed", want.Failed, got.Failed)
	}
	return errs
}

// matchChange compares the set fields of want against r and returns
// expected/actual pairs for every mismatch.
func matchChange(r record.Record, want ExpectedChange) [][2]string {
	var out [][2]string
	add := func(field string, expected, actual any) {
		out = append(out, [2]string{
			fmt.Sprintf("%s=%v", field, expected),
			fmt.Sprintf("%s=%v", field, actual),
		})
	}

	if want.EntityID != nil && *want.EntityID != r.EntityID {
		add("entity_id", *want.EntityID, r.EntityID)
	}
	if want.Kind != "" {
		if kind, _ := record.ParseKind(want.Kind); kind != r.Kind {
			add("kind", kind, r.Kind)
		}
	}
	if want.OldUnknown && r.OldQuantity != nil {
		add("old", "-", *r.OldQuantity)
	}
	if want.Old != nil && (r.OldQuantity == nil || *r.OldQuantity != *want.Old) {
		add("old", *want.Old, record.FormatQuantity(r.OldQuantity))
	}
	if want.New != nil && *want.New != r.NewQuantity {
		add("new", *want.New, r.NewQuantity)
	}
	if want.Delta != nil && *want.Delta != r.Delta {
		add("delta", *want.Delta, r.Delta)
	}
	if want.Reason != nil && *want.Reason != r.Reason {
		add("reason", fmt.Sprintf("%q", *want.Reason), fmt.Sprintf("%q", r.Reason))
	}
	if want.OrderID != nil && (r.OrderID == nil || *r.OrderID != *want.OrderID) {
		add("order_id", *want.OrderID, record.FormatQuantity(r.OrderID))
	}
	if want.Origin != nil {
		got := ""
		if r.Origin != nil {
			got = r.Origin.String()
		}
		if got != *want.Origin {
			add("origin", fmt.Sprintf("%q", *want.Origin), fmt.Sprintf("%q", got))
		}
	}
	return out
}
