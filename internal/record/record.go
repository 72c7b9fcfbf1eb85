package record

import (
	"fmt"
	"strconv"
	"time"
)

// Location identifies the source position that triggered a change.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// String renders the location as path:line.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Draft is the insert payload for a change record.
// ID and Delta are assigned by the store; CreatedAt is assigned when zero.
type Draft struct {
	EntityID      int64     `json:"entity_id"`
	EntityName    string    `json:"entity_name"`
	EntitySKU     string    `json:"entity_sku,omitempty"`
	OldQuantity   *int64    `json:"old_quantity"`
	NewQuantity   int64     `json:"new_quantity"`
	Kind          Kind      `json:"change_kind"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       *int64    `json:"actor_id,omitempty"`
	OrderID       *int64    `json:"order_id,omitempty"`
	Origin        *Location `json:"origin,omitempty"`
	ClientAddress string    `json:"client_address,omitempty"`
	ClientAgent   string    `json:"client_agent,omitempty"`
	UnitID        string    `json:"unit_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Record is a committed, immutable change record.
type Record struct {
	ID            int64     `json:"id"`
	EntityID      int64     `json:"entity_id"`
	EntityName    string    `json:"entity_name"`
	EntitySKU     string    `json:"entity_sku,omitempty"`
	OldQuantity   *int64    `json:"old_quantity"`
	NewQuantity   int64     `json:"new_quantity"`
	Delta         int64     `json:"delta"`
	Kind          Kind      `json:"change_kind"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       *int64    `json:"actor_id,omitempty"`
	OrderID       *int64    `json:"order_id,omitempty"`
	Origin        *Location `json:"origin,omitempty"`
	ClientAddress string    `json:"client_address,omitempty"`
	ClientAgent   string    `json:"client_agent,omitempty"`
	UnitID        string    `json:"unit_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Delta returns new minus old, or 0 when the old quantity is unknown.
//
// Zero for an unknown baseline is kept for compatibility with existing logs;
// readers must check OldQuantity before treating Delta as a real difference.
func (d Draft) Delta() int64 {
	if d.OldQuantity == nil {
		return 0
	}
	return d.NewQuantity - *d.OldQuantity
}

// Validate checks the invariants every stored record must satisfy.
func (d Draft) Validate() error {
	if d.EntityID <= 0 {
		return &ValidationError{Field: "entity_id", Message: "must be greater than zero"}
	}
	if !d.Kind.Valid() {
		return &ValidationError{Field: "change_kind", Message: fmt.Sprintf("unknown kind %q", d.Kind)}
	}
	return nil
}

// Commit turns a validated draft into a record with the given id and time.
func (d Draft) Commit(id int64, at time.Time) Record {
	return Record{
		ID:            id,
		EntityID:      d.EntityID,
		EntityName:    d.EntityName,
		EntitySKU:     d.EntitySKU,
		OldQuantity:   d.OldQuantity,
		NewQuantity:   d.NewQuantity,
		Delta:         d.Delta(),
		Kind:          d.Kind,
		Reason:        d.Reason,
		ActorID:       d.ActorID,
		OrderID:       d.OrderID,
		Origin:        d.Origin,
		ClientAddress: d.ClientAddress,
		ClientAgent:   d.ClientAgent,
		UnitID:        d.UnitID,
		CreatedAt:     at,
	}
}

// ValidationError reports a draft that cannot be stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// FormatDelta renders a delta with an explicit sign for increases.
func FormatDelta(d int64) string {
	if d > 0 {
		return "+" + strconv.FormatInt(d, 10)
	}
	return strconv.FormatInt(d, 10)
}

// FormatQuantity renders an optional quantity, using "-" for unknown.
func FormatQuantity(q *int64) string {
	if q == nil {
		return "-"
	}
	return strconv.FormatInt(*q, 10)
}

// Settings holds the persisted capture options.
type Settings struct {
	// TraceOrigin enables source-location capture for new records. It walks
	// the call stack on every commit, so it is off by default.
	TraceOrigin bool `json:"trace_origin" yaml:"trace_origin"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{TraceOrigin: false}
}
