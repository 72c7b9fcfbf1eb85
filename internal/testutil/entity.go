package testutil

// Entity is a mutable in-memory stock entity for tests. It satisfies the
// capture engine's entity and stock-manager capabilities.
type Entity struct {
	EntityID   int64
	EntityName string
	EntitySKU  string

	// Qty is nil when the entity has no tracked quantity.
	Qty *int64

	// Unmanaged opts the entity out of stock management.
	Unmanaged bool
}

// NewEntity returns an entity with a tracked quantity.
func NewEntity(id int64, name, sku string, qty int64) *Entity {
	return &Entity{EntityID: id, EntityName: name, EntitySKU: sku, Qty: &qty}
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

func (e *Entity) ManagesStock() bool {
	return !e.Unmanaged
}

// Set changes the tracked quantity.
func (e *Entity) Set(qty int64) *Entity {
	e.Qty = &qty
	return e
}
