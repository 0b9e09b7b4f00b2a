package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGStore — остатки и журнал в Postgres. Одна pgx-транзакция на движение.
type PGStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPGStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PGStore {
	return &PGStore{pool: pool, lockTimeout: lockTimeout}
}

const nonNegativeConstraint = "stock_positions_quantity_nonneg"

// mapPgErr переводит ошибки Postgres в ошибки пакета.
func mapPgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01": // lock_not_available, deadlock_detected
			return fmt.Errorf("%w: %s: %s", ErrBusy, op, pgErr.Message)
		case "23514":
			if pgErr.ConstraintName == nonNegativeConstraint {
				return fmt.Errorf("%w: %s: %s", ErrNegativeStock, op, pgErr.Message)
			}
		}
	}
	return storageErr(op, err)
}

func (s *PGStore) Begin(ctx context.Context) (StoreTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapPgErr("begin", err)
	}
	if s.lockTimeout > 0 {
		ms := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			_ = tx.Rollback(ctx)
			return nil, mapPgErr("set lock_timeout", err)
		}
	}
	return &pgTx{tx: tx}, nil
}

const positionCols = `material_id, warehouse_id, location_id, quantity, min_quantity, monitor_stock_level, created_at, updated_at`

func scanPosition(row pgx.Row) (Position, error) {
	var p Position
	err := row.Scan(&p.MaterialID, &p.WarehouseID, &p.LocationID,
		&p.Quantity, &p.MinQuantity, &p.MonitorStockLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Get(ctx context.Context, key Key) (decimal.Decimal, error) {
	var q decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT quantity FROM stock_positions
		WHERE material_id = $1 AND warehouse_id = $2 AND location_id = $3
		FOR UPDATE
	`, key.MaterialID, key.WarehouseID, key.LocationID).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, mapPgErr("lock position", err)
	}
	return q, nil
}

func (t *pgTx) ApplyDelta(ctx context.Context, key Key, delta decimal.Decimal) (Position, error) {
	if !delta.IsNegative() {
		p, err := scanPosition(t.tx.QueryRow(ctx, `
			INSERT INTO stock_positions (material_id, warehouse_id, location_id, quantity)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (material_id, warehouse_id, location_id)
			DO UPDATE SET quantity = stock_positions.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING `+positionCols,
			key.MaterialID, key.WarehouseID, key.LocationID, delta))
		if err != nil {
			return Position{}, mapPgErr("receive", err)
		}
		return p, nil
	}

	// Списание только если хватает: иначе ни одной строки.
	p, err := scanPosition(t.tx.QueryRow(ctx, `
		UPDATE stock_positions
		SET quantity = quantity + $4, updated_at = NOW()
		WHERE material_id = $1 AND warehouse_id = $2 AND location_id = $3
		  AND quantity + $4 >= 0
		RETURNING `+positionCols,
		key.MaterialID, key.WarehouseID, key.LocationID, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		avail, gerr := t.Get(ctx, key)
		if gerr != nil {
			return Position{}, gerr
		}
		return Position{}, &StockError{Kind: ErrNegativeStock, Key: key, Available: avail, Requested: delta.Neg()}
	}
	if err != nil {
		return Position{}, mapPgErr("write off", err)
	}
	return p, nil
}

func sideCols(s *Side) (wh, loc *int64) {
	if s == nil {
		return nil, nil
	}
	w, l := s.WarehouseID, s.LocationID
	return &w, &l
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (t *pgTx) Append(ctx context.Context, rec *Record) error {
	fromWh, fromLoc := sideCols(rec.From)
	toWh, toLoc := sideCols(rec.To)
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_transactions (
			material_id, type, quantity,
			from_warehouse_id, from_location_id, to_warehouse_id, to_location_id,
			counted_quantity, project_id, purchase_order_item_id,
			performed_by, is_general_use, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at
	`, rec.MaterialID, string(rec.Type), rec.Quantity,
		fromWh, fromLoc, toWh, toLoc,
		rec.Counted, nullID(rec.ProjectID), nullID(rec.PurchaseOrderItemID),
		rec.PerformedBy, rec.IsGeneralUse, rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return mapPgErr("append transaction", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapPgErr("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func (s *PGStore) Position(ctx context.Context, key Key) (Position, bool, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, `
		SELECT `+positionCols+` FROM stock_positions
		WHERE material_id = $1 AND warehouse_id = $2 AND location_id = $3
	`, key.MaterialID, key.WarehouseID, key.LocationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, mapPgErr("get position", err)
	}
	return p, true, nil
}

// where собирает условия и аргументы запроса по фильтру.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (s *PGStore) Positions(ctx context.Context, f PositionFilter) ([]Position, error) {
	var w where
	if f.MaterialID != 0 {
		w.add("material_id = ?", f.MaterialID)
	}
	if f.WarehouseID != 0 {
		w.add("warehouse_id = ?", f.WarehouseID)
	}
	if f.LocationID != nil {
		w.add("location_id = ?", *f.LocationID)
	}
	if f.LowOnly {
		w.conds = append(w.conds, "monitor_stock_level AND min_quantity IS NOT NULL AND quantity < min_quantity")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+positionCols+` FROM stock_positions`+w.String()+
		` ORDER BY material_id, warehouse_id, location_id`, w.args...)
	if err != nil {
		return nil, mapPgErr("list positions", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, mapPgErr("scan position", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list positions", err)
	}
	return out, nil
}

const recordCols = `id, material_id, type, quantity,
	from_warehouse_id, from_location_id, to_warehouse_id, to_location_id,
	counted_quantity, project_id, purchase_order_item_id,
	performed_by, is_general_use, notes, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r                   Record
		typ                 string
		fromWh, fromLoc     *int64
		toWh, toLoc         *int64
		projectID, poItemID *int64
	)
	if err := row.Scan(&r.ID, &r.MaterialID, &typ, &r.Quantity,
		&fromWh, &fromLoc, &toWh, &toLoc,
		&r.Counted, &projectID, &poItemID,
		&r.PerformedBy, &r.IsGeneralUse, &r.Notes, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.Type = Type(typ)
	r.From = sideOf(fromWh, fromLoc)
	r.To = sideOf(toWh, toLoc)
	if projectID != nil {
		r.ProjectID = *projectID
	}
	if poItemID != nil {
		r.PurchaseOrderItemID = *poItemID
	}
	return r, nil
}

func sideOf(wh, loc *int64) *Side {
	if wh == nil {
		return nil
	}
	s := Side{WarehouseID: *wh}
	if loc != nil {
		s.LocationID = *loc
	}
	return &s
}

func (s *PGStore) queryRecords(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapPgErr("list transactions", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, mapPgErr("scan transaction", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list transactions", err)
	}
	return out, nil
}

func (s *PGStore) History(ctx context.Context, key Key) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordCols+` FROM stock_transactions
		WHERE material_id = $1
		  AND ((from_warehouse_id = $2 AND from_location_id = $3)
		    OR (to_warehouse_id = $2 AND to_location_id = $3))
		ORDER BY id
	`, key.MaterialID, key.WarehouseID, key.LocationID)
}

func (s *PGStore) Records(ctx context.Context, f RecordFilter) ([]Record, error) {
	var w where
	if f.MaterialID != 0 {
		w.add("material_id = ?", f.MaterialID)
	}
	if f.Type != "" {
		w.add("type = ?", string(f.Type))
	}
	if f.ProjectID != 0 {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.PurchaseOrderItemID != 0 {
		w.add("purchase_order_item_id = ?", f.PurchaseOrderItemID)
	}
	if f.GeneralUse != nil {
		w.add("is_general_use = ?", *f.GeneralUse)
	}
	if !f.Since.IsZero() {
		w.add("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		w.add("created_at < ?", f.Until)
	}
	q := `SELECT ` + recordCols + ` FROM stock_transactions` + w.String() + ` ORDER BY id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return s.queryRecords(ctx, q, w.args...)
}

func (s *PGStore) SetThreshold(ctx context.Context, key Key, min decimal.NullDecimal, monitor bool) (Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, `
		UPDATE stock_positions
		SET min_quantity = $4, monitor_stock_level = $5, updated_at = NOW()
		WHERE material_id = $1 AND warehouse_id = $2 AND location_id = $3
		RETURNING `+positionCols,
		key.MaterialID, key.WarehouseID, key.LocationID, min, monitor))
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, ErrPositionNotFound
	}
	if err != nil {
		return Position{}, mapPgErr("set threshold", err)
	}
	return p, nil
}
