package query

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/stocklog/internal/record"
)

// Predicate is a filter condition over change records.
//
// This is a sealed interface - only types in this package implement it.
// Backends either compile predicates to SQL (Compiler) or call Match.
type Predicate interface {
	predicateNode()

	// Match evaluates the predicate against a record in memory.
	Match(r record.Record) bool
}

// Equals matches field = Value exactly.
type Equals struct {
	Field string
	Value any
}

// ContainsFold matches records whose field contains Value, ignoring case.
// Absent (empty) fields never match.
type ContainsFold struct {
	Field string
	Value string
}

// AtLeast matches field >= Value.
type AtLeast struct {
	Field string
	Value time.Time
}

// Before matches field < Value.
type Before struct {
	Field string
	Value time.Time
}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode()       {}
func (ContainsFold) predicateNode() {}
func (AtLeast) predicateNode()      {}
func (Before) predicateNode()       {}
func (And) predicateNode()          {}

// FoldColumns maps text columns to their case-folded shadow columns.
var FoldColumns = map[string]string{
	"entity_name": "entity_name_fold",
	"entity_sku":  "entity_sku_fold",
}

// Fold returns the Unicode case folding of s. A Caser holds state, so one
// is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Match implements Predicate.
func (p Equals) Match(r record.Record) bool {
	switch want := p.Value.(type) {
	case int64:
		got, ok := FieldValue(r, p.Field).(int64)
		return ok && got == want
	case int:
		got, ok := FieldValue(r, p.Field).(int64)
		return ok && got == int64(want)
	case string:
		got, ok := FieldValue(r, p.Field).(string)
		return ok && got == want
	default:
		return false
	}
}

// Match implements Predicate.
func (p ContainsFold) Match(r record.Record) bool {
	got, ok := FieldValue(r, p.Field).(string)
	if !ok || got == "" {
		return false
	}
	return strings.Contains(Fold(got), Fold(p.Value))
}

// Match implements Predicate.
func (p AtLeast) Match(r record.Record) bool {
	got, ok := FieldValue(r, p.Field).(time.Time)
	return ok && !got.Before(p.Value)
}

// Match implements Predicate.
func (p Before) Match(r record.Record) bool {
	got, ok := FieldValue(r, p.Field).(time.Time)
	return ok && got.Before(p.Value)
}

// Match implements Predicate.
func (p And) Match(r record.Record) bool {
	for _, pred := range p.Predicates {
		if !pred.Match(r) {
			return false
		}
	}
	return true
}

// FieldValue returns the value of a record column by name. Nullable numeric
// columns return nil when absent. Unknown names return nil.
func FieldValue(r record.Record, field string) any {
	switch field {
	case "id":
		return r.ID
	case "entity_id":
		return r.EntityID
	case "entity_name":
		return r.EntityName
	case "entity_sku":
		return r.EntitySKU
	case "old_quantity":
		if r.OldQuantity == nil {
			return nil
		}
		return *r.OldQuantity
	case "new_quantity":
		return r.NewQuantity
	case "delta":
		return r.Delta
	case "change_kind":
		return string(r.Kind)
	case "created_at":
		return r.CreatedAt
	default:
		return nil
	}
}

// Compare orders two records by field, ascending. Absent values sort first,
// matching the NULLS FIRST clause the SQL compiler emits for ascending sorts.
func Compare(a, b record.Record, field string) int {
	va, vb := FieldValue(a, field), FieldValue(b, field)
	if field == "entity_sku" {
		// Empty SKUs are stored as NULL.
		if va == "" {
			va = nil
		}
		if vb == "" {
			vb = nil
		}
	}
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return -1
	case vb == nil:
		return 1
	}

	switch x := va.(type) {
	case int64:
		return compareInt(x, vb.(int64))
	case string:
		return strings.Compare(x, vb.(string))
	case time.Time:
		return x.Compare(vb.(time.Time))
	default:
		return 0
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b under s, with id as tiebreaker in
// the same direction.
func (s Sort) Less(a, b record.Record) bool {
	c := Compare(a, b, s.Field)
	if c == 0 {
		c = compareInt(a.ID, b.ID)
	}
	if s.Asc {
		return c < 0
	}
	return c > 0
}
