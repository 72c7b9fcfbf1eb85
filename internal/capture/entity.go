package capture

import "context"

// Entity is the capability a notification payload must expose.
// Quantity reports false when the entity has no tracked quantity.
type Entity interface {
	ID() int64
	Name() string
	SKU() string
	Quantity() (int64, bool)
}

// StockManager is implemented by entities that can opt out of stock
// tracking. Entities without it are treated as tracked.
type StockManager interface {
	ManagesStock() bool
}

// LineItem is one order line.
type LineItem struct {
	Entity   Entity
	Quantity int64
}

// Order is the payload of order-stock notifications.
type Order struct {
	ID    int64
	Items []LineItem
}

// FormSave is the payload of admin form-save notifications.
type FormSave struct {
	EntityID   int64
	EntityType string
	Autosave   bool
}

// Lookup resolves entity ids to entities, for notifications that only
// carry ids.
type Lookup interface {
	Entity(ctx context.Context, id int64) (Entity, bool)
}

// Catalog is a map-backed Lookup with an optional fallback.
type Catalog struct {
	entities map[int64]Entity
	fallback Lookup
}

// NewCatalog creates an empty catalog. Misses go to fallback when set.
func NewCatalog(fallback Lookup) *Catalog {
	return &Catalog{entities: make(map[int64]Entity), fallback: fallback}
}

// Put adds or replaces an entity.
func (c *Catalog) Put(e Entity) {
	if !valid(e) {
		return
	}
	c.entities[e.ID()] = e
}

// Entity returns the entity with the given id.
func (c *Catalog) Entity(ctx context.Context, id int64) (Entity, bool) {
	if e, ok := c.entities[id]; ok {
		return e, true
	}
	if c.fallback != nil {
		return c.fallback.Entity(ctx, id)
	}
	return nil, false
}

// valid reports whether e can be logged at all.
func valid(e Entity) bool {
	return e != nil && e.ID() > 0
}

func managesStock(e Entity) bool {
	if sm, ok := e.(StockManager); ok {
		return sm.ManagesStock()
	}
	return true
}
