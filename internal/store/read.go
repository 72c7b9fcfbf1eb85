package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

const recordColumns = `id, entity_id, entity_name, entity_sku, old_quantity, new_quantity, delta,
	change_kind, reason, actor_id, order_id, client_address, client_agent,
	origin_path, origin_line, unit_id, created_at`

// LastQuantity returns the new quantity of the most recent record for the
// entity. Ties on created_at resolve to the highest id.
func (s *Store) LastQuantity(ctx context.Context, entityID int64) (int64, bool, error) {
	c := s.d.compiler()
	stmt := fmt.Sprintf(`
		SELECT new_quantity FROM stock_changes
		WHERE entity_id = %s
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, c.Param(entityID))

	var qty int64
	err := s.db.QueryRowContext(ctx, stmt, c.Params()...).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("last quantity for entity %d: %w", entityID, err)
	}
	return qty, true, nil
}

// Query returns one page of records matching the filter.
func (s *Store) Query(ctx context.Context, f query.Filter, srt query.Sort, p query.Page) (query.Result, error) {
	plan := query.Normalize(f, srt, p, s.loc)

	countC := s.d.compiler()
	where, err := countC.Where(plan.Where)
	if err != nil {
		return query.Result{}, fmt.Errorf("compile filter: %w", err)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stock_changes WHERE "+where, countC.Params()...,
	).Scan(&total); err != nil {
		return query.Result{}, fmt.Errorf("count records: %w", err)
	}

	c := s.d.compiler()
	where, err = c.Where(plan.Where)
	if err != nil {
		return query.Result{}, fmt.Errorf("compile filter: %w", err)
	}
	orderBy, err := c.OrderBy(plan.Sort)
	if err != nil {
		return query.Result{}, fmt.Errorf("compile sort: %w", err)
	}
	stmt := fmt.Sprintf("SELECT %s FROM stock_changes WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		recordColumns, where, orderBy,
		c.Param(plan.Page.Size), c.Param(plan.Page.Offset()))

	rows, err := s.db.QueryContext(ctx, stmt, c.Params()...)
	if err != nil {
		return query.Result{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return query.Result{}, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate records: %w", err)
	}

	return query.NewResult(records, total, plan.Page), nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (record.Record, error) {
	c := s.d.compiler()
	stmt := fmt.Sprintf("SELECT %s FROM stock_changes WHERE id = %s", recordColumns, c.Param(id))

	r, err := scanRecord(s.db.QueryRowContext(ctx, stmt, c.Params()...))
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("get record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (record.Record, error) {
	var (
		r                                 record.Record
		kind                              string
		sku, reason, addr, agent, unitID  sql.NullString
		originPath                        sql.NullString
		oldQty, actorID, orderID, originL sql.NullInt64
		createdAt                         any
	)
	if err := row.Scan(
		&r.ID, &r.EntityID, &r.EntityName, &sku, &oldQty, &r.NewQuantity, &r.Delta,
		&kind, &reason, &actorID, &orderID, &addr, &agent,
		&originPath, &originL, &unitID, &createdAt,
	); err != nil {
		return record.Record{}, err
	}

	at, err := decodeTime(createdAt)
	if err != nil {
		return record.Record{}, err
	}

	r.Kind = record.Kind(kind)
	r.EntitySKU = sku.String
	r.Reason = reason.String
	r.ClientAddress = addr.String
	r.ClientAgent = agent.String
	r.UnitID = unitID.String
	r.OldQuantity = intPtr(oldQty)
	r.ActorID = intPtr(actorID)
	r.OrderID = intPtr(orderID)
	if originPath.Valid {
		r.Origin = &record.Location{Path: originPath.String, Line: int(originL.Int64)}
	}
	r.CreatedAt = at
	return r, nil
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return record.Int64(v.Int64)
}
