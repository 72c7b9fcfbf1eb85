package provenance

import (
	"fmt"
	"strings"

	"github.com/roach88/stocklog/internal/record"
)

// Reason strings for manual edits.
const (
	ReasonBulkSave   = "Manual edit: bulk variation save"
	ReasonEntityEdit = "Manual edit: entity edit page"
	ReasonAdmin      = "Manual edit: admin panel"
	ReasonManual     = "Manual edit"
)

// Request describes the programmatic request that caused a change.
type Request struct {
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Route  string `json:"route,omitempty" yaml:"route,omitempty"`
}

// IsZero reports whether neither method nor route is known.
func (r Request) IsZero() bool {
	return r.Method == "" && r.Route == ""
}

// Context is the execution-context descriptor for one evaluation.
//
// Several flags may be set at once (an order processed from the admin
// panel sets both OrderReduce and Admin). Classify resolves them by
// precedence.
type Context struct {
	Admin        bool `json:"admin,omitempty" yaml:"admin,omitempty"`
	EntityEdit   bool `json:"entity_edit,omitempty" yaml:"entity_edit,omitempty"`
	BulkSave     bool `json:"bulk_save,omitempty" yaml:"bulk_save,omitempty"`
	OrderReduce  bool `json:"order_reduce,omitempty" yaml:"order_reduce,omitempty"`
	OrderRestore bool `json:"order_restore,omitempty" yaml:"order_restore,omitempty"`
	Programmatic bool `json:"programmatic,omitempty" yaml:"programmatic,omitempty"`

	// OrderID is the order being reduced or restored, if any.
	OrderID *int64 `json:"order_id,omitempty" yaml:"order_id,omitempty"`

	// Request is the captured method and route of a programmatic request.
	Request *Request `json:"request,omitempty" yaml:"request,omitempty"`

	// RequestPath is the raw request path, used when no route was captured.
	RequestPath string `json:"request_path,omitempty" yaml:"request_path,omitempty"`
}

// Classification is the resolved cause of a change.
type Classification struct {
	Kind    record.Kind
	Reason  string
	OrderID *int64
}

// Classify resolves a context to a change kind and reason.
func Classify(c Context) Classification {
	switch {
	case c.OrderReduce:
		return Classification{
			Kind:    record.KindOrder,
			Reason:  withOrder("Order", c.OrderID),
			OrderID: c.OrderID,
		}
	case c.OrderRestore:
		return Classification{
			Kind:    record.KindRestore,
			Reason:  withOrder("Restore from order", c.OrderID),
			OrderID: c.OrderID,
		}
	case c.Programmatic:
		return Classification{Kind: record.KindProgrammatic, Reason: apiReason(c)}
	case c.BulkSave:
		return Classification{Kind: record.KindManual, Reason: ReasonBulkSave}
	case c.EntityEdit:
		return Classification{Kind: record.KindManual, Reason: ReasonEntityEdit}
	case c.Admin:
		return Classification{Kind: record.KindManual, Reason: ReasonAdmin}
	default:
		return Classification{Kind: record.KindManual, Reason: ReasonManual}
	}
}

// withOrder appends " #N" when the order is known.
func withOrder(prefix string, id *int64) string {
	if id == nil {
		return prefix
	}
	return fmt.Sprintf("%s #%d", prefix, *id)
}

// apiReason prefers "API: METHOD /route", then "API: /path". With neither
// the reason is left empty.
func apiReason(c Context) string {
	if c.Request != nil && c.Request.Route != "" {
		method := strings.ToUpper(strings.TrimSpace(c.Request.Method))
		if method == "" {
			return "API: " + c.Request.Route
		}
		return fmt.Sprintf("API: %s %s", method, c.Request.Route)
	}
	if path := strings.TrimSpace(c.RequestPath); path != "" {
		return "API: " + path
	}
	return ""
}
