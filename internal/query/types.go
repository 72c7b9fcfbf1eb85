package query

import (
	"math"
	"strings"
	"time"

	"github.com/roach88/stocklog/internal/record"
)

// Pagination defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 500

	// MaxPageNumber keeps the row offset of any page within int.
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// DefaultSortField is used when the requested sort key is not allowed.
const DefaultSortField = "created_at"

// dateLayout is the calendar-day format accepted by DateFrom and DateTo.
const dateLayout = "2006-01-02"

// SortFields is the allow-list of sortable record columns.
var SortFields = []string{
	"id",
	"entity_id",
	"entity_name",
	"entity_sku",
	"old_quantity",
	"new_quantity",
	"delta",
	"change_kind",
	"created_at",
}

// Filter selects records. Zero-valued fields are ignored.
type Filter struct {
	EntityID int64  `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	SKU      string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	DateFrom string `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty" yaml:"date_to,omitempty"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Sort orders records by a single allowed field. The zero value is
// descending; ties break on id in the same direction.
type Sort struct {
	Field string `json:"orderby,omitempty" yaml:"orderby,omitempty"`
	Asc   bool   `json:"asc,omitempty" yaml:"asc,omitempty"`
}

// ParseSort builds a Sort from request-style parameters. Direction is
// descending unless order is "asc" (any case).
func ParseSort(field, order string) Sort {
	return Sort{Field: field, Asc: strings.EqualFold(strings.TrimSpace(order), "asc")}
}

// Page is a 1-indexed, offset-based page request.
type Page struct {
	Size   int `json:"per_page" yaml:"per_page"`
	Number int `json:"page" yaml:"page"`
}

// Offset returns the number of rows to skip. Pages are expected to be
// normalized; anything before the first page yields 0.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Result is one page of records plus totals over the whole filtered set.
type Result struct {
	Records     []record.Record `json:"records"`
	TotalItems  int64           `json:"total_items"`
	TotalPages  int64           `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	PageSize    int             `json:"per_page"`
}

// NewResult computes page totals for a filtered count.
func NewResult(records []record.Record, total int64, page Page) Result {
	if records == nil {
		records = []record.Record{}
	}
	return Result{
		Records:     records,
		TotalItems:  total,
		TotalPages:  int64(math.Ceil(float64(total) / float64(page.Size))),
		CurrentPage: page.Number,
		PageSize:    page.Size,
	}
}

// Plan is a normalized, backend-independent query.
type Plan struct {
	Where Predicate // nil selects every record
	Sort  Sort
	Page  Page
}

// Normalize clamps sort and page values to their defaults and converts the
// filter into a predicate. Calendar days are interpreted in loc (UTC when
// nil) and become a half-open [from, to+1 day) range on created_at.
func Normalize(f Filter, s Sort, p Page, loc *time.Location) Plan {
	if loc == nil {
		loc = time.UTC
	}

	if !allowedSortField(s.Field) {
		s.Field = DefaultSortField
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}

	var preds []Predicate
	if f.EntityID > 0 {
		preds = append(preds, Equals{Field: "entity_id", Value: f.EntityID})
	}
	if sku := strings.TrimSpace(f.SKU); sku != "" {
		preds = append(preds, ContainsFold{Field: "entity_sku", Value: sku})
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		preds = append(preds, ContainsFold{Field: "entity_name", Value: name})
	}
	if from, ok := parseDay(f.DateFrom, loc); ok {
		preds = append(preds, AtLeast{Field: "created_at", Value: from.UTC()})
	}
	if to, ok := parseDay(f.DateTo, loc); ok {
		preds = append(preds, Before{Field: "created_at", Value: to.AddDate(0, 0, 1).UTC()})
	}
	if raw := strings.TrimSpace(f.Kind); raw != "" {
		value := raw
		if kind, err := record.ParseKind(raw); err == nil {
			value = string(kind)
		}
		preds = append(preds, Equals{Field: "change_kind", Value: value})
	}

	plan := Plan{Sort: s, Page: p}
	switch len(preds) {
	case 0:
	case 1:
		plan.Where = preds[0]
	default:
		plan.Where = And{Predicates: preds}
	}
	return plan
}

func allowedSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

func parseDay(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
