package catalog_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/scm-ledger/internal/domain/catalog"
	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/infra/db"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}
	require.NoError(t, db.Migrate(dsn))

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE TABLE materials, material_categories, inventory_locations, warehouses RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestRepo_ResolveAndDescribe(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewRepo(setupTestDB(t))

	w1, err := repo.CreateWarehouse(ctx, "W1", "Основной", "ул. Складская, 1")
	require.NoError(t, err)
	w2, err := repo.CreateWarehouse(ctx, "W2", "Объект", "")
	require.NoError(t, err)
	again, err := repo.CreateWarehouse(ctx, "W1", "дубль", "")
	require.NoError(t, err)
	assert.Equal(t, w1.ID, again.ID)

	l1, err := repo.CreateLocation(ctx, w1.ID, "A-01", "Стеллаж A")
	require.NoError(t, err)
	root, err := repo.CreateCategory(ctx, "Электрика", 0)
	require.NoError(t, err)
	cable, err := repo.CreateCategory(ctx, "Кабель", root.ID)
	require.NoError(t, err)
	m, err := repo.CreateMaterial(ctx, catalog.Material{
		Code: "VVG-3x2.5", Name: "Кабель ВВГ 3x2.5", CategoryID: cable.ID, Unit: catalog.UnitM,
		Specs: map[string]any{"cores": 3, "section_mm2": 2.5},
	})
	require.NoError(t, err)

	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Specs["cores"])

	require.NoError(t, repo.Resolve(ctx, m.ID, inventory.Side{WarehouseID: w1.ID, LocationID: l1.ID}))

	err = repo.Resolve(ctx, m.ID, inventory.Side{WarehouseID: w2.ID, LocationID: l1.ID})
	require.ErrorIs(t, err, inventory.ErrInvalidTransaction)
	require.ErrorIs(t, err, catalog.ErrLocationMismatch)

	err = repo.Resolve(ctx, m.ID+100, inventory.Side{WarehouseID: w1.ID})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, repo.SetWarehouseActive(ctx, w2.ID, false))
	err = repo.Resolve(ctx, m.ID, inventory.Side{WarehouseID: w2.ID})
	require.ErrorIs(t, err, catalog.ErrInactive)

	info, err := repo.DescribePosition(ctx, inventory.Key{MaterialID: m.ID, WarehouseID: w1.ID, LocationID: l1.ID})
	require.NoError(t, err)
	assert.Equal(t, "Электрика / Кабель", info.CategoryName)
	assert.Equal(t, "A-01", info.LocationCode)
	assert.Equal(t, catalog.UnitM, info.Unit)
}

func TestRepo_SetCategoryParentRejectsCycle(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewRepo(setupTestDB(t))

	a, err := repo.CreateCategory(ctx, "A", 0)
	require.NoError(t, err)
	b, err := repo.CreateCategory(ctx, "B", a.ID)
	require.NoError(t, err)

	require.ErrorIs(t, repo.SetCategoryParent(ctx, a.ID, b.ID), catalog.ErrCategoryCycle)
	require.NoError(t, repo.SetCategoryParent(ctx, b.ID, 0))
	require.NoError(t, repo.SetCategoryParent(ctx, a.ID, b.ID))
}
