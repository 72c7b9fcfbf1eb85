package intake

import (
	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/provenance"
	"github.com/roach88/stocklog/internal/record"
)

// Event types beyond the capture notifications.
const (
	EventPhaseEnter = "phase.enter"
	EventPhaseLeave = "phase.leave"
)

// Batch is the notifications of one processing unit.
type Batch struct {
	Context provenance.Context `json:"context" yaml:"context"`
	ActorID *int64             `json:"actor_id,omitempty" yaml:"actor_id,omitempty"`
	Client  Client             `json:"client" yaml:"client"`
	Events  []Event            `json:"events" yaml:"events"`
}

// Client is request metadata stamped on every record of the unit.
type Client struct {
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Agent   string `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// Event is one host notification.
type Event struct {
	Type string `json:"type" yaml:"type"`

	// Entity is the entity handle for entity and API events. For admin
	// form events it is an optional snapshot; EntityID defaults to its id.
	Entity   *Entity  `json:"entity,omitempty" yaml:"entity,omitempty"`
	EntityID int64    `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Entities []Entity `json:"entities,omitempty" yaml:"entities,omitempty"`

	// EntityIDs lists bulk-save targets; defaults to the ids of Entities.
	EntityIDs []int64 `json:"entity_ids,omitempty" yaml:"entity_ids,omitempty"`

	EntityType string `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	Autosave   bool   `json:"autosave,omitempty" yaml:"autosave,omitempty"`

	Order    *Order              `json:"order,omitempty" yaml:"order,omitempty"`
	Request  *provenance.Request `json:"request,omitempty" yaml:"request,omitempty"`
	Creating bool                `json:"creating,omitempty" yaml:"creating,omitempty"`

	// Origin is the host-reported source location of the change. It is
	// recorded only when origin tracing is enabled.
	Origin *record.Location `json:"origin,omitempty" yaml:"origin,omitempty"`

	// Phase and OrderID apply to phase.enter and phase.leave.
	Phase   string `json:"phase,omitempty" yaml:"phase,omitempty"`
	OrderID *int64 `json:"order_id,omitempty" yaml:"order_id,omitempty"`
}

// Entity is a wire snapshot of an entity. It implements capture.Entity and
// capture.StockManager.
type Entity struct {
	EntityID    int64  `json:"id" yaml:"id"`
	EntityName  string `json:"name" yaml:"name"`
	EntitySKU   string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Qty         *int64 `json:"quantity" yaml:"quantity"`
	ManageStock *bool  `json:"manage_stock,omitempty" yaml:"manage_stock,omitempty"`
}

func (e *Entity) ID() int64    { return e.EntityID }
func (e *Entity) Name() string { return e.EntityName }
func (e *Entity) SKU() string  { return e.EntitySKU }

func (e *Entity) Quantity() (int64, bool) {
	if e.Qty == nil {
		return 0, false
	}
	return *e.Qty, true
}

// ManagesStock defaults to true when not reported.
func (e *Entity) ManagesStock() bool {
	return e.ManageStock == nil || *e.ManageStock
}

// Order is a wire order.
type Order struct {
	ID    int64      `json:"id" yaml:"id"`
	Items []LineItem `json:"items" yaml:"items"`
}

// LineItem is one wire order line.
type LineItem struct {
	Entity   *Entity `json:"entity" yaml:"entity"`
	Quantity int64   `json:"quantity" yaml:"quantity"`
}

// Summary reports what one applied batch did.
type Summary struct {
	UnitID  string        `json:"unit_id"`
	Events  int           `json:"events"`
	Applied int           `json:"applied"`
	Skipped int           `json:"skipped"`
	Stats   capture.Stats `json:"stats"`
}

func (o *Order) toCapture() *capture.Order {
	co := &capture.Order{ID: o.ID, Items: make([]capture.LineItem, 0, len(o.Items))}
	for _, item := range o.Items {
		li := capture.LineItem{Quantity: item.Quantity}
		if item.Entity != nil {
			li.Entity = item.Entity
		}
		co.Items = append(co.Items, li)
	}
	return co
}
