package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

// Insert appends a change record and returns its id.
//
// Delta is computed from the draft. CreatedAt is set from the store clock
// when zero. Empty optional strings are stored as NULL. Failures are
// returned as *PersistenceError.
func (s *Store) Insert(ctx context.Context, d record.Draft) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, &PersistenceError{Op: "insert", EntityID: d.EntityID, Err: err}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	var originPath, originLine any
	if d.Origin != nil {
		originPath, originLine = d.Origin.Path, d.Origin.Line
	}

	c := s.d.compiler()
	stmt := fmt.Sprintf(`
		INSERT INTO stock_changes
		(entity_id, entity_name, entity_sku, old_quantity, new_quantity, delta,
		 change_kind, reason, actor_id, order_id, client_address, client_agent,
		 origin_path, origin_line, unit_id, created_at, entity_name_fold, entity_sku_fold)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		RETURNING id`,
		c.Param(d.EntityID),
		c.Param(d.EntityName),
		c.Param(nullString(d.EntitySKU)),
		c.Param(nullInt(d.OldQuantity)),
		c.Param(d.NewQuantity),
		c.Param(d.Delta()),
		c.Param(string(d.Kind)),
		c.Param(nullString(d.Reason)),
		c.Param(nullInt(d.ActorID)),
		c.Param(nullInt(d.OrderID)),
		c.Param(nullString(d.ClientAddress)),
		c.Param(nullString(d.ClientAgent)),
		c.Param(originPath),
		c.Param(originLine),
		c.Param(nullString(d.UnitID)),
		c.Param(s.d.encodeTime(d.CreatedAt)),
		c.Param(query.Fold(d.EntityName)),
		c.Param(nullString(query.Fold(d.EntitySKU))),
	)

	var id int64
	if err := s.db.QueryRowContext(ctx, stmt, c.Params()...).Scan(&id); err != nil {
		return 0, &PersistenceError{Op: "insert", EntityID: d.EntityID, Err: err}
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
