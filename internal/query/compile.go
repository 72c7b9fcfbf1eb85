package query

import (
	"fmt"
	"strings"
	"time"
)

// Compiler compiles predicates and sort orders to parameterized SQL.
//
// CRITICAL: values are NEVER interpolated - every value becomes a parameter.
// CRITICAL: every ORDER BY ends with an id tiebreaker for stable paging.
//
// A Compiler accumulates parameters; use one Compiler per statement.
type Compiler struct {
	// Numbered selects $1, $2, ... placeholders (Postgres) instead of ?.
	Numbered bool

	// ILike uses ILIKE for case-insensitive matching (Postgres). SQLite's
	// LIKE is already case-insensitive for ASCII.
	ILike bool

	// EncodeTime converts timestamps to the backend's column encoding.
	// Defaults to t.UTC().
	EncodeTime func(time.Time) any

	params []any
}

// Params returns the parameters collected so far, in placeholder order.
func (c *Compiler) Params() []any {
	return c.params
}

// Param registers a value and returns its placeholder.
func (c *Compiler) Param(v any) string {
	c.params = append(c.params, v)
	if c.Numbered {
		return fmt.Sprintf("$%d", len(c.params))
	}
	return "?"
}

// Where compiles a predicate to a WHERE fragment (without the keyword).
// A nil predicate compiles to "1 = 1".
func (c *Compiler) Where(p Predicate) (string, error) {
	if p == nil {
		return "1 = 1", nil
	}

	switch pred := p.(type) {
	case Equals:
		if err := checkColumn(pred.Field); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", pred.Field, c.Param(pred.Value)), nil

	case ContainsFold:
		if err := checkColumn(pred.Field); err != nil {
			return "", err
		}
		op := "LIKE"
		if c.ILike {
			op = "ILIKE"
		}
		pattern := "%" + escapeLike(pred.Value) + "%"
		fold, ok := FoldColumns[pred.Field]
		if !ok {
			return fmt.Sprintf("%s %s %s ESCAPE '\\'", pred.Field, op, c.Param(pattern)), nil
		}
		// Rows written before the fold columns existed keep them NULL and
		// fall back to the driver's own case handling.
		folded := "%" + escapeLike(Fold(pred.Value)) + "%"
		return fmt.Sprintf("(%s LIKE %s ESCAPE '\\' OR (%s IS NULL AND %s %s %s ESCAPE '\\'))",
			fold, c.Param(folded), fold, pred.Field, op, c.Param(pattern)), nil

	case AtLeast:
		if err := checkColumn(pred.Field); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s >= %s", pred.Field, c.Param(c.encodeTime(pred.Value))), nil

	case Before:
		if err := checkColumn(pred.Field); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s < %s", pred.Field, c.Param(c.encodeTime(pred.Value))), nil

	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			sql, err := c.Where(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return strings.Join(parts, " AND "), nil

	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// OrderBy compiles a sort to an ORDER BY fragment (without the keyword).
// The field must already be normalized; unknown fields are rejected.
func (c *Compiler) OrderBy(s Sort) (string, error) {
	if !allowedSortField(s.Field) {
		return "", fmt.Errorf("sort field %q not allowed", s.Field)
	}
	dir, nulls := "DESC", "NULLS LAST"
	if s.Asc {
		dir, nulls = "ASC", "NULLS FIRST"
	}
	if s.Field == "id" {
		return "id " + dir, nil
	}
	return fmt.Sprintf("%s %s %s, id %s", s.Field, dir, nulls, dir), nil
}

func (c *Compiler) encodeTime(t time.Time) any {
	if c.EncodeTime != nil {
		return c.EncodeTime(t)
	}
	return t.UTC()
}

// checkColumn guards identifier interpolation: only known record columns
// may appear in compiled SQL.
func checkColumn(field string) error {
	if allowedSortField(field) {
		return nil
	}
	return fmt.Errorf("unknown column %q", field)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
