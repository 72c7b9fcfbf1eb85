package capture

import (
	"fmt"

	"github.com/roach88/stocklog/internal/provenance"
)

// Phase is an ambient host action that is in progress while notifications
// fire, such as an order being processed.
type Phase string

const (
	PhaseAdmin        Phase = "admin"
	PhaseEntityEdit   Phase = "entity_edit"
	PhaseBulkSave     Phase = "bulk_save"
	PhaseOrderReduce  Phase = "order_reduce"
	PhaseOrderRestore Phase = "order_restore"
	PhaseProgrammatic Phase = "programmatic"
)

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhaseAdmin, PhaseEntityEdit, PhaseBulkSave, PhaseOrderReduce, PhaseOrderRestore, PhaseProgrammatic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown phase %q", s)
	}
}

// Descriptor is the fixed context of a processing unit.
type Descriptor struct {
	// Context holds flags that apply to the whole unit, for example
	// Programmatic for an API request or Admin for an admin-panel request.
	Context       provenance.Context
	ActorID       *int64
	ClientAddress string
	ClientAgent   string
}

// Stats counts evaluation outcomes for one unit.
type Stats struct {
	Seen      int `json:"seen"`
	Committed int `json:"committed"`
	NoOps     int `json:"noops"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (s *Stats) add(o Outcome) {
	s.Seen++
	switch o {
	case OutcomeCommitted:
		s.Committed++
	case OutcomeNoOp:
		s.NoOps++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

type phaseFrame struct {
	phase   Phase
	orderID *int64
}

// Unit is the transient state of one processing unit: the baseline
// quantities, pending programmatic requests and active phases.
//
// A Unit is not safe for concurrent use.
type Unit struct {
	id       string
	desc     Descriptor
	lookup   Lookup
	baseline map[int64]int64
	pending  map[int64]provenance.Request
	phases   []phaseFrame
	stats    Stats
	ended    bool
}

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithUnitLookup sets the lookup used for id-only notifications in this
// unit, overriding the engine's lookup.
func WithUnitLookup(l Lookup) UnitOption {
	return func(u *Unit) {
		u.lookup = l
	}
}

func newUnit(id string, d Descriptor, opts ...UnitOption) *Unit {
	u := &Unit{
		id:       id,
		desc:     d,
		baseline: make(map[int64]int64),
		pending:  make(map[int64]provenance.Request),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ID returns the unit id stamped on every record the unit commits.
func (u *Unit) ID() string {
	return u.id
}

// Descriptor returns the unit's fixed context.
func (u *Unit) Descriptor() Descriptor {
	return u.desc
}

// Stats returns the outcome counters so far.
func (u *Unit) Stats() Stats {
	return u.stats
}

// Baseline returns the last observed quantity of an entity in this unit.
func (u *Unit) Baseline(entityID int64) (int64, bool) {
	q, ok := u.baseline[entityID]
	return q, ok
}

// Ended reports whether End was called.
func (u *Unit) Ended() bool {
	return u.ended
}

// Enter marks a phase as active until the returned leave func is called.
// orderID applies to order phases and may be nil.
func (u *Unit) Enter(p Phase, orderID *int64) (leave func()) {
	u.phases = append(u.phases, phaseFrame{phase: p, orderID: orderID})
	return func() { u.Leave(p) }
}

// Leave ends the innermost active instance of p. It reports false when p
// is not active.
func (u *Unit) Leave(p Phase) bool {
	for i := len(u.phases) - 1; i >= 0; i-- {
		if u.phases[i].phase == p {
			u.phases = append(u.phases[:i], u.phases[i+1:]...)
			return true
		}
	}
	return false
}

// Context returns the unit's descriptor context with every active phase
// applied. The innermost phase carrying an order id wins.
func (u *Unit) Context() provenance.Context {
	c := u.desc.Context
	for _, f := range u.phases {
		switch f.phase {
		case PhaseAdmin:
			c.Admin = true
		case PhaseEntityEdit:
			c.EntityEdit = true
		case PhaseBulkSave:
			c.BulkSave = true
		case PhaseOrderReduce:
			c.OrderReduce = true
		case PhaseOrderRestore:
			c.OrderRestore = true
		case PhaseProgrammatic:
			c.Programmatic = true
		}
		if f.orderID != nil {
			c.OrderID = f.orderID
		}
	}
	return c
}

// End discards the unit's transient state. Later notifications for the
// unit are ignored. End returns the final stats.
func (u *Unit) End() Stats {
	u.ended = true
	clear(u.baseline)
	clear(u.pending)
	u.phases = nil
	return u.stats
}

func (u *Unit) snapshot(e Entity) {
	if q, ok := e.Quantity(); ok {
		u.baseline[e.ID()] = q
		return
	}
	// An unknown quantity clears the baseline rather than recording zero.
	delete(u.baseline, e.ID())
}
