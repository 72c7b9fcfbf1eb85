package capture

import (
	"context"

	"github.com/roach88/stocklog/internal/provenance"
)

// EntityPreSave snapshots an entity's quantity before the host saves it.
func (e *Engine) EntityPreSave(ctx context.Context, u *Unit, ent Entity) {
	if !e.active(u) || !valid(ent) {
		return
	}
	u.snapshot(ent)
}

// QuantitySet evaluates an entity after its quantity field was set.
func (e *Engine) QuantitySet(ctx context.Context, u *Unit, ent Entity) Outcome {
	return e.Evaluate(ctx, u, ent)
}

// OrderReduceBefore snapshots every line-item entity before the order
// consumes stock.
func (e *Engine) OrderReduceBefore(ctx context.Context, u *Unit, o *Order) {
	if !e.active(u) || o == nil {
		return
	}
	for _, item := range o.Items {
		if valid(item.Entity) {
			u.snapshot(item.Entity)
		}
	}
}

// OrderReduceCommit evaluates every line item once the order consumed
// stock. Items whose quantity did not change are no-ops.
//
// Without any baseline the old quantity is taken to be the new quantity
// plus the ordered quantity.
func (e *Engine) OrderReduceCommit(ctx context.Context, u *Unit, o *Order) []Outcome {
	if !e.active(u) || o == nil {
		return nil
	}
	leave := u.Enter(PhaseOrderReduce, orderID(o))
	defer leave()

	outcomes := make([]Outcome, 0, len(o.Items))
	for _, item := range o.Items {
		qty := item.Quantity
		outcomes = append(outcomes, e.evaluate(ctx, u, item.Entity, evalOpts{
			fallback: func(newQty int64) (int64, bool) {
				return newQty + qty, true
			},
		}))
	}
	return outcomes
}

// OrderRestore records returned stock for every line item. The old quantity
// is the entity's current quantity and the new one adds the returned
// amount. No no-op check applies since a positive return always changes
// the quantity; items returning nothing are skipped.
func (e *Engine) OrderRestore(ctx context.Context, u *Unit, o *Order) []Outcome {
	if !e.active(u) || o == nil {
		return nil
	}
	leave := u.Enter(PhaseOrderRestore, orderID(o))
	defer leave()

	// A restore is never an order reduction, even inside one.
	pc := u.Context()
	pc.OrderReduce = false
	pc.OrderID = orderID(o)

	outcomes := make([]Outcome, 0, len(o.Items))
	for _, item := range o.Items {
		outcomes = append(outcomes, e.restoreItem(ctx, u, item, pc))
	}
	return outcomes
}

func (e *Engine) restoreItem(ctx context.Context, u *Unit, item LineItem, pc provenance.Context) Outcome {
	if !valid(item.Entity) || item.Quantity <= 0 {
		return u.count(OutcomeSkipped)
	}
	current, ok := item.Entity.Quantity()
	if !ok {
		return u.count(OutcomeSkipped)
	}
	old := current
	return e.commit(ctx, u, item.Entity, &old, current+item.Quantity, pc)
}

// BulkSaveBefore snapshots every entity in a bulk variation save.
func (e *Engine) BulkSaveBefore(ctx context.Context, u *Unit, ids []int64) {
	if !e.active(u) {
		return
	}
	for _, id := range ids {
		if ent, ok := e.resolve(ctx, u, id); ok {
			u.snapshot(ent)
		}
	}
}

// AdminFormSaveBefore snapshots the entity behind an admin form before it
// is saved. Autosaves and forms for other entity types are ignored.
func (e *Engine) AdminFormSaveBefore(ctx context.Context, u *Unit, f FormSave) {
	if !e.active(u) || !e.tracksForm(f) {
		return
	}
	if ent, ok := e.resolve(ctx, u, f.EntityID); ok {
		u.snapshot(ent)
	}
}

// AdminFormSaveCommit evaluates the entity behind a saved admin form, as an
// entity-edit change. Entities that do not manage stock are skipped.
func (e *Engine) AdminFormSaveCommit(ctx context.Context, u *Unit, f FormSave) Outcome {
	if !e.active(u) {
		return OutcomeSkipped
	}
	if !e.tracksForm(f) {
		return u.count(OutcomeSkipped)
	}
	ent, ok := e.resolve(ctx, u, f.EntityID)
	if !ok || !managesStock(ent) {
		return u.count(OutcomeSkipped)
	}

	leave := u.Enter(PhaseEntityEdit, nil)
	defer leave()
	return e.evaluate(ctx, u, ent, evalOpts{})
}

// ProgrammaticUpdate evaluates an entity updated through the API. The
// request is attached so the record's reason names the route. Creations
// are ignored: there is no prior state to diff.
func (e *Engine) ProgrammaticUpdate(ctx context.Context, u *Unit, ent Entity, req *provenance.Request, creating bool) Outcome {
	if !e.active(u) {
		return OutcomeSkipped
	}
	if !valid(ent) || creating {
		return u.count(OutcomeSkipped)
	}
	id := ent.ID()

	if _, ok := u.baseline[id]; !ok {
		if q, ok := e.lastQuantity(ctx, u, id); ok {
			u.baseline[id] = q
		}
	}
	if req != nil && !req.IsZero() {
		u.pending[id] = *req
	}

	return e.evaluate(ctx, u, ent, evalOpts{programmatic: true})
}

func (e *Engine) tracksForm(f FormSave) bool {
	return !f.Autosave && f.EntityType == e.trackedType
}

func orderID(o *Order) *int64 {
	if o.ID <= 0 {
		return nil
	}
	id := o.ID
	return &id
}
