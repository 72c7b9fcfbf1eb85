package capture

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/stocklog/internal/provenance"
)

// Notification event names.
const (
	EventEntityPreSave       = "entity.pre_save"
	EventQuantitySet         = "entity.quantity_set"
	EventOrderReduceBefore   = "order.stock_reduce.before"
	EventOrderReduceCommit   = "order.stock_reduce.commit"
	EventOrderRestore        = "order.stock_restore"
	EventBulkSaveBefore      = "bulk.variation_save.before"
	EventAdminFormSaveBefore = "admin.form_save.before"
	EventAdminFormSaveCommit = "admin.form_save.commit"
	EventAPIUpdate           = "api.update"
)

// DefaultPriority is the priority handlers register with unless a
// snapshot must run first.
const DefaultPriority = 10

// Notification is the payload of one fired event. Which fields are set
// depends on the event.
type Notification struct {
	Event     string
	Entity    Entity
	EntityIDs []int64
	Form      FormSave
	Order     *Order
	Request   *provenance.Request
	Creating  bool
}

// Handler reacts to a notification within a unit.
type Handler func(ctx context.Context, u *Unit, n Notification)

type registration struct {
	priority int
	seq      int
	handler  Handler
}

// Hooks is a registry of named event handlers.
//
// Handlers for one event run in ascending priority, then in registration
// order. A panicking handler is logged and the remaining handlers still run.
//
// Thread-safety: On and Fire are safe for concurrent use.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	seq      int
	logger   *slog.Logger
}

// NewHooks creates an empty registry. A nil logger uses slog.Default().
func NewHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{handlers: make(map[string][]registration), logger: logger}
}

// On registers a handler for an event.
func (h *Hooks) On(event string, priority int, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	regs := append(h.handlers[event], registration{priority: priority, seq: h.seq, handler: fn})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	h.handlers[event] = regs
}

// Has reports whether any handler is registered for the event.
func (h *Hooks) Has(event string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[event]) > 0
}

// Fire runs every handler registered for n.Event and returns how many ran.
func (h *Hooks) Fire(ctx context.Context, u *Unit, n Notification) int {
	h.mu.RLock()
	regs := append([]registration(nil), h.handlers[n.Event]...)
	h.mu.RUnlock()

	for _, r := range regs {
		h.run(ctx, u, n, r.handler)
	}
	return len(regs)
}

func (h *Hooks) run(ctx context.Context, u *Unit, n Notification, fn Handler) {
	defer func() {
		if p := recover(); p != nil {
			unit := ""
			if u != nil {
				unit = u.ID()
			}
			h.logger.Error("hook handler panicked", "event", n.Event, "unit", unit, "panic", p)
		}
	}()
	fn(ctx, u, n)
}

// Register subscribes every engine operation to its event. Snapshot
// handlers register ahead of the default priority and the admin form
// commit after it, so other handlers on the same event see a settled
// entity.
func (e *Engine) Register(h *Hooks) {
	h.On(EventEntityPreSave, DefaultPriority, func(ctx context.Context, u *Unit, n Notification) {
		e.EntityPreSave(ctx, u, n.Entity)
	})
	h.On(EventQuantitySet, DefaultPriority, func(ctx context.Context, u *Unit, n Notification) {
		e.QuantitySet(ctx, u, n.Entity)
	})
	h.On(EventOrderReduceBefore, 5, func(ctx context.Context, u *Unit, n Notification) {
		e.OrderReduceBefore(ctx, u, n.Order)
	})
	h.On(EventOrderReduceCommit, DefaultPriority, func(ctx context.Context, u *Unit, n Notification) {
		e.OrderReduceCommit(ctx, u, n.Order)
	})
	h.On(EventOrderRestore, DefaultPriority, func(ctx context.Context, u *Unit, n Notification) {
		e.OrderRestore(ctx, u, n.Order)
	})
	h.On(EventBulkSaveBefore, 5, func(ctx context.Context, u *Unit, n Notification) {
		e.BulkSaveBefore(ctx, u, n.EntityIDs)
	})
	h.On(EventAdminFormSaveBefore, 5, func(ctx context.Context, u *Unit, n Notification) {
		e.AdminFormSaveBefore(ctx, u, n.Form)
	})
	h.On(EventAdminFormSaveCommit, 99, func(ctx context.Context, u *Unit, n Notification) {
		e.AdminFormSaveCommit(ctx, u, n.Form)
	})
	h.On(EventAPIUpdate, DefaultPriority, func(ctx context.Context, u *Unit, n Notification) {
		e.ProgrammaticUpdate(ctx, u, n.Entity, n.Request, n.Creating)
	})
}

// Events lists the event names Register subscribes to.
func Events() []string {
	return []string{
		EventEntityPreSave,
		EventQuantitySet,
		EventOrderReduceBefore,
		EventOrderReduceCommit,
		EventOrderRestore,
		EventBulkSaveBefore,
		EventAdminFormSaveBefore,
		EventAdminFormSaveCommit,
		EventAPIUpdate,
	}
}
