package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/provenance"
)

// Applier applies batches to an engine through a hook registry.
type Applier struct {
	engine *capture.Engine
	hooks  *capture.Hooks
	lookup capture.Lookup
	logger *slog.Logger
}

// NewApplier creates an Applier. The engine's operations are registered on
// hooks by the caller, so host-specific handlers can be added alongside.
// lookup, when set, backs the per-unit catalog.
func NewApplier(engine *capture.Engine, hooks *capture.Hooks, lookup capture.Lookup, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{engine: engine, hooks: hooks, lookup: lookup, logger: logger}
}

// Apply runs the batch as one processing unit.
//
// Malformed events are skipped and counted; they never fail the batch.
// The only error is a context that is already done.
func (a *Applier) Apply(ctx context.Context, b Batch) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("apply batch: %w", err)
	}

	catalog := capture.NewCatalog(a.lookup)
	u := a.engine.Begin(capture.Descriptor{
		Context:       b.Context,
		ActorID:       b.ActorID,
		ClientAddress: b.Client.Address,
		ClientAgent:   b.Client.Agent,
	}, capture.WithUnitLookup(catalog))

	sum := Summary{UnitID: u.ID(), Events: len(b.Events)}
	for i, ev := range b.Events {
		if err := a.applyEvent(ctx, u, catalog, ev); err != nil {
			a.logger.Warn("event skipped",
				"unit", u.ID(),
				"index", i,
				"type", ev.Type,
				"error", err,
			)
			sum.Skipped++
			continue
		}
		sum.Applied++
	}
	sum.Stats = u.End()

	a.logger.Info("unit applied",
		"unit", sum.UnitID,
		"events", sum.Events,
		"skipped", sum.Skipped,
		"committed", sum.Stats.Committed,
		"failed", sum.Stats.Failed,
	)
	return sum, nil
}

// ErrUnknownEvent is returned for event types nothing handles.
var ErrUnknownEvent = errors.New("unknown event type")

func (a *Applier) applyEvent(ctx context.Context, u *capture.Unit, catalog *capture.Catalog, ev Event) error {
	switch ev.Type {
	case EventPhaseEnter:
		p, err := capture.ParsePhase(ev.Phase)
		if err != nil {
			return err
		}
		u.Enter(p, ev.OrderID)
		return nil
	case EventPhaseLeave:
		p, err := capture.ParsePhase(ev.Phase)
		if err != nil {
			return err
		}
		if !u.Leave(p) {
			return fmt.Errorf("phase %q is not active", p)
		}
		return nil
	}

	n, err := notification(ev)
	if err != nil {
		return err
	}

	if ev.Entity != nil {
		catalog.Put(ev.Entity)
	}
	for i := range ev.Entities {
		catalog.Put(&ev.Entities[i])
	}

	if ev.Origin != nil {
		ctx = provenance.WithOrigin(ctx, *ev.Origin)
	}
	if a.hooks.Fire(ctx, u, n) == 0 {
		return fmt.Errorf("%w %q", ErrUnknownEvent, ev.Type)
	}
	return nil
}

// notification validates an event and converts it for the hook registry.
func notification(ev Event) (capture.Notification, error) {
	n := capture.Notification{Event: ev.Type, Request: ev.Request, Creating: ev.Creating}

	switch ev.Type {
	case capture.EventEntityPreSave, capture.EventQuantitySet, capture.EventAPIUpdate:
		if ev.Entity == nil || ev.Entity.EntityID <= 0 {
			return n, errors.New("missing entity")
		}
		n.Entity = ev.Entity

	case capture.EventOrderReduceBefore, capture.EventOrderReduceCommit, capture.EventOrderRestore:
		if ev.Order == nil {
			return n, errors.New("missing order")
		}
		n.Order = ev.Order.toCapture()

	case capture.EventBulkSaveBefore:
		ids := ev.EntityIDs
		if len(ids) == 0 {
			for _, e := range ev.Entities {
				ids = append(ids, e.EntityID)
			}
		}
		if len(ids) == 0 {
			return n, errors.New("missing entity ids")
		}
		n.EntityIDs = ids

	case capture.EventAdminFormSaveBefore, capture.EventAdminFormSaveCommit:
		id := ev.EntityID
		if id == 0 && ev.Entity != nil {
			id = ev.Entity.EntityID
		}
		if id <= 0 {
			return n, errors.New("missing entity id")
		}
		n.Form = capture.FormSave{EntityID: id, EntityType: ev.EntityType, Autosave: ev.Autosave}
	}
	return n, nil
}
