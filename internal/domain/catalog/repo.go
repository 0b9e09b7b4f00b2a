package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

/* Warehouses */

func (r *Repo) CreateWarehouse(ctx context.Context, code, name, address string) (*Warehouse, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO warehouses (code, name, address) VALUES ($1,$2,$3)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, code, name, address, is_active, created_at
	`, code, name, address)
	var w Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Уже есть — вернём существующий
		return r.GetWarehouseByCode(ctx, code)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repo) GetWarehouseByCode(ctx context.Context, code string) (*Warehouse, error) {
	return r.getWarehouse(ctx, `code = $1`, code)
}

func (r *Repo) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	return r.getWarehouse(ctx, `id = $1`, id)
}

func (r *Repo) getWarehouse(ctx context.Context, cond string, arg any) (*Warehouse, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, address, is_active, created_at
		FROM warehouses WHERE `+cond, arg)
	var w Warehouse
	if err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repo) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, address, is_active, created_at
		FROM warehouses
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) SetWarehouseActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse %d", ErrNotFound, id)
	}
	return nil
}

/* Locations */

func (r *Repo) CreateLocation(ctx context.Context, warehouseID int64, code, name string) (*Location, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_locations (warehouse_id, code, name) VALUES ($1,$2,$3)
		ON CONFLICT (warehouse_id, code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, warehouse_id, code, name, is_active
	`, warehouseID, code, name)
	var l Location
	if err := row.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.Active); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) ListLocations(ctx context.Context, warehouseID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, warehouse_id, code, name, is_active
		FROM inventory_locations
		WHERE warehouse_id = $1
		ORDER BY code
	`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.Active); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

/* Categories */

func (r *Repo) CreateCategory(ctx context.Context, name string, parentID int64) (*Category, error) {
	var parent *int64
	if parentID != 0 {
		parent = &parentID
	}
	var c Category
	var p *int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO material_categories (name, parent_id) VALUES ($1,$2)
		RETURNING id, name, parent_id
	`, name, parent).Scan(&c.ID, &c.Name, &p)
	if err != nil {
		return nil, err
	}
	if p != nil {
		c.ParentID = *p
	}
	return &c, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	return listCategories(ctx, r.pool, `SELECT id, name, parent_id FROM material_categories ORDER BY name`)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listCategories(ctx context.Context, q querier, sql string) ([]Category, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		var p *int64
		if err := rows.Scan(&c.ID, &c.Name, &p); err != nil {
			return nil, err
		}
		if p != nil {
			c.ParentID = *p
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCategoryParent переподвешивает категорию. Дерево блокируется целиком,
// чтобы два встречных переноса не собрали цикл.
func (r *Repo) SetCategoryParent(ctx context.Context, id, parentID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cats, err := listCategories(ctx, tx, `SELECT id, name, parent_id FROM material_categories FOR UPDATE`)
	if err != nil {
		return err
	}
	if err := NewTree(cats).CheckParent(id, parentID); err != nil {
		return err
	}
	var parent *int64
	if parentID != 0 {
		parent = &parentID
	}
	if _, err := tx.Exec(ctx, `UPDATE material_categories SET parent_id = $2 WHERE id = $1`, id, parent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

/* Materials */

const materialCols = `id, code, name, description, COALESCE(category_id, 0), unit_of_measure, technical_specs, is_active, created_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.CategoryID, &m.Unit, &m.Specs, &m.Active, &m.CreatedAt)
	return m, err
}

func (r *Repo) CreateMaterial(ctx context.Context, m Material) (*Material, error) {
	var cat *int64
	if m.CategoryID != 0 {
		cat = &m.CategoryID
	}
	if m.Unit == "" {
		m.Unit = UnitPcs
	}
	if m.Specs == nil {
		m.Specs = map[string]any{}
	}
	out, err := scanMaterial(r.pool.QueryRow(ctx, `
		INSERT INTO materials (code, name, description, category_id, unit_of_measure, technical_specs)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+materialCols,
		m.Code, m.Name, m.Description, cat, string(m.Unit), m.Specs))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, `SELECT `+materialCols+` FROM materials WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ListMaterials(ctx context.Context, onlyActive bool) ([]Material, error) {
	q := `SELECT ` + materialCols + ` FROM materials`
	if onlyActive {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) SetMaterialActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE materials SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	return nil
}

/* Ledger integration */

// Resolve проверяет, что материал, склады и ячейки заявки существуют и активны.
// Ошибки справочника отдаются как невалидная транзакция.
func (r *Repo) Resolve(ctx context.Context, materialID int64, sides ...inventory.Side) error {
	if err := r.resolve(ctx, materialID, sides); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactive) || errors.Is(err, ErrLocationMismatch) {
			return fmt.Errorf("%w: %w", inventory.ErrInvalidTransaction, err)
		}
		return fmt.Errorf("%w: resolve: %w", inventory.ErrStorageFailure, err)
	}
	return nil
}

func (r *Repo) resolve(ctx context.Context, materialID int64, sides []inventory.Side) error {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM materials WHERE id = $1`, materialID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: material %d", ErrNotFound, materialID)
	}
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("%w: material %d", ErrInactive, materialID)
	}

	for _, s := range sides {
		err := r.pool.QueryRow(ctx, `SELECT is_active FROM warehouses WHERE id = $1`, s.WarehouseID).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: warehouse %d", ErrNotFound, s.WarehouseID)
		}
		if err != nil {
			return err
		}
		if !active {
			return fmt.Errorf("%w: warehouse %d", ErrInactive, s.WarehouseID)
		}
		if s.LocationID == 0 {
			continue
		}
		var whID int64
		err = r.pool.QueryRow(ctx, `SELECT warehouse_id, is_active FROM inventory_locations WHERE id = $1`, s.LocationID).
			Scan(&whID, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: location %d", ErrNotFound, s.LocationID)
		}
		if err != nil {
			return err
		}
		if whID != s.WarehouseID {
			return fmt.Errorf("%w: location %d, warehouse %d", ErrLocationMismatch, s.LocationID, s.WarehouseID)
		}
		if !active {
			return fmt.Errorf("%w: location %d", ErrInactive, s.LocationID)
		}
	}
	return nil
}

// DescribePosition — названия материала, категории (с родителями), склада и ячейки.
func (r *Repo) DescribePosition(ctx context.Context, key inventory.Key) (PositionInfo, error) {
	var (
		info    PositionInfo
		catID   *int64
		catName *string
		locCode *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT m.code, m.name, m.unit_of_measure, m.category_id, c.name, w.code, w.name, l.code
		FROM materials m
		JOIN warehouses w ON w.id = $2
		LEFT JOIN material_categories c ON c.id = m.category_id
		LEFT JOIN inventory_locations l ON l.id = $3
		WHERE m.id = $1
	`, key.MaterialID, key.WarehouseID, key.LocationID).Scan(
		&info.MaterialCode, &info.MaterialName, &info.Unit, &catID, &catName,
		&info.WarehouseCode, &info.WarehouseName, &locCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return PositionInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return PositionInfo{}, err
	}
	if locCode != nil {
		info.LocationCode = *locCode
	}
	if catID == nil {
		return info, nil
	}
	info.CategoryID = *catID

	cats, err := r.ListCategories(ctx)
	if err != nil {
		return PositionInfo{}, err
	}
	info.CategoryName = CategoryPath(cats, *catID)
	if info.CategoryName == "" && catName != nil {
		info.CategoryName = *catName
	}
	return info, nil
}

// CategoryPath — «Родитель / Потомок».
func CategoryPath(cats []Category, id int64) string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	if _, ok := names[id]; !ok {
		return ""
	}
	chain := NewTree(cats).Ancestors(id)
	parts := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		parts = append(parts, names[chain[i]])
	}
	parts = append(parts, names[id])
	return strings.Join(parts, " / ")
}
