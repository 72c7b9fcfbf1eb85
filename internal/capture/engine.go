package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/stocklog/internal/provenance"
	"github.com/roach88/stocklog/internal/record"
)

// DefaultTrackedType is the admin form entity type the engine watches.
const DefaultTrackedType = "product"

// RecordStore is the persistence port the engine needs.
type RecordStore interface {
	Insert(ctx context.Context, d record.Draft) (int64, error)
	LastQuantity(ctx context.Context, entityID int64) (int64, bool, error)
}

// Engine evaluates notifications against per-unit state.
//
// The engine holds no per-unit state itself. Everything transient lives in
// the Unit passed to each operation.
type Engine struct {
	store       RecordStore
	resolver    *provenance.Resolver
	lookup      Lookup
	logger      *slog.Logger
	trackedType string
	now         func() time.Time
	ids         IDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookup sets the default lookup for id-only notifications.
func WithLookup(l Lookup) Option {
	return func(e *Engine) {
		e.lookup = l
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTrackedType sets the admin form entity type that is tracked.
// Default: "product".
func WithTrackedType(t string) Option {
	return func(e *Engine) {
		if t != "" {
			e.trackedType = t
		}
	}
}

// WithClock stamps records with the given clock instead of letting the
// store assign the time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets the unit id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine. A nil resolver classifies without tracing.
func New(store RecordStore, resolver *provenance.Resolver, opts ...Option) *Engine {
	if resolver == nil {
		resolver = provenance.NewResolver(nil)
	}
	e := &Engine{
		store:       store,
		resolver:    resolver,
		logger:      slog.Default(),
		trackedType: DefaultTrackedType,
		ids:         UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin starts a processing unit.
func (e *Engine) Begin(d Descriptor, opts ...UnitOption) *Unit {
	u := newUnit(e.ids.Generate(), d, opts...)
	if u.lookup == nil {
		u.lookup = e.lookup
	}
	e.logger.Debug("unit started", "unit", u.id)
	return u
}

// active reports whether u can still accept notifications.
func (e *Engine) active(u *Unit) bool {
	if u == nil {
		e.logger.Warn("notification without a processing unit ignored")
		return false
	}
	if u.ended {
		e.logger.Debug("notification after unit end ignored", "unit", u.id)
		return false
	}
	return true
}

// evalOpts adjusts one evaluation.
type evalOpts struct {
	// programmatic forces the programmatic flag for this evaluation.
	programmatic bool
	// fallback is the last-resort baseline when neither the unit nor the
	// store knows one.
	fallback func(newQty int64) (int64, bool)
}

// Evaluate diffs an entity's current quantity against its baseline and
// commits a record when it changed.
func (e *Engine) Evaluate(ctx context.Context, u *Unit, ent Entity) Outcome {
	if !e.active(u) {
		return OutcomeSkipped
	}
	return e.evaluate(ctx, u, ent, evalOpts{})
}

func (e *Engine) evaluate(ctx context.Context, u *Unit, ent Entity, opts evalOpts) Outcome {
	if !valid(ent) {
		e.logger.Debug("evaluate skipped: no entity", "unit", u.id)
		return u.count(OutcomeSkipped)
	}
	id := ent.ID()

	newQty, ok := ent.Quantity()
	if !ok {
		e.logger.Debug("evaluate skipped: quantity not tracked", "unit", u.id, "entity_id", id)
		return u.count(OutcomeSkipped)
	}

	old, known := u.baseline[id]
	if !known {
		old, known = e.lastQuantity(ctx, u, id)
	}
	if !known && opts.fallback != nil {
		old, known = opts.fallback(newQty)
	}

	if known && old == newQty {
		e.logger.Debug("stock unchanged",
			"unit", u.id,
			"entity_id", id,
			"quantity", newQty,
		)
		return u.count(OutcomeNoOp)
	}

	pc := u.Context()
	if opts.programmatic {
		pc.Programmatic = true
	}
	if pc.Programmatic {
		if req, ok := u.pending[id]; ok {
			pc.Request = &req
			delete(u.pending, id)
		}
	}

	var oldPtr *int64
	if known {
		oldPtr = record.Int64(old)
	}
	return e.commit(ctx, u, ent, oldPtr, newQty, pc)
}

// commit classifies and writes one record, then refreshes the baseline.
func (e *Engine) commit(ctx context.Context, u *Unit, ent Entity, old *int64, newQty int64, pc provenance.Context) Outcome {
	cls, origin := e.resolver.Resolve(ctx, pc)

	d := record.Draft{
		EntityID:      ent.ID(),
		EntityName:    ent.Name(),
		EntitySKU:     ent.SKU(),
		OldQuantity:   old,
		NewQuantity:   newQty,
		Kind:          cls.Kind,
		Reason:        cls.Reason,
		ActorID:       u.desc.ActorID,
		OrderID:       cls.OrderID,
		Origin:        origin,
		ClientAddress: u.desc.ClientAddress,
		ClientAgent:   u.desc.ClientAgent,
		UnitID:        u.id,
	}
	if e.now != nil {
		d.CreatedAt = e.now()
	}

	id, err := e.store.Insert(ctx, d)

	// The host already applied the change, so later diffs in this unit
	// start from the new quantity whether or not the write succeeded.
	u.baseline[d.EntityID] = newQty

	if err != nil {
		e.logger.Error("record stock change failed",
			"unit", u.id,
			"entity_id", d.EntityID,
			"old_quantity", record.FormatQuantity(old),
			"new_quantity", newQty,
			"kind", d.Kind,
			"reason", d.Reason,
			"error", err,
		)
		return u.count(OutcomeFailed)
	}

	e.logger.Debug("stock change recorded",
		"unit", u.id,
		"record_id", id,
		"entity_id", d.EntityID,
		"delta", record.FormatDelta(d.Delta()),
		"kind", d.Kind,
	)
	return u.count(OutcomeCommitted)
}

// lastQuantity reads the store fallback. Read errors are logged and treated
// as an unknown baseline.
func (e *Engine) lastQuantity(ctx context.Context, u *Unit, entityID int64) (int64, bool) {
	q, ok, err := e.store.LastQuantity(ctx, entityID)
	if err != nil {
		e.logger.Warn("read last quantity failed",
			"unit", u.id,
			"entity_id", entityID,
			"error", err,
		)
		return 0, false
	}
	return q, ok
}

func (e *Engine) resolve(ctx context.Context, u *Unit, id int64) (Entity, bool) {
	if id <= 0 || u.lookup == nil {
		return nil, false
	}
	ent, ok := u.lookup.Entity(ctx, id)
	if !ok || !valid(ent) {
		return nil, false
	}
	return ent, true
}

func (u *Unit) count(o Outcome) Outcome {
	u.stats.add(o)
	return o
}
