package inventory_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/infra/db"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	// Отдельная база: тест чистит таблицы.
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}
	require.NoError(t, db.Migrate(dsn))

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE TABLE stock_transactions, stock_positions RESTART IDENTITY`)
	require.NoError(t, err)
	return pool
}

func newPGEngine(t *testing.T) (*inventory.Engine, *pgxpool.Pool) {
	pool := setupTestDB(t)
	store := inventory.NewPGStore(pool, 2*time.Second)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return inventory.NewEngine(store, log, inventory.Options{}), pool
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPGStore_Scenario(t *testing.T) {
	e, _ := newPGEngine(t)
	ctx := context.Background()
	a := inventory.Side{WarehouseID: 1, LocationID: 11}
	b := inventory.Side{WarehouseID: 2}

	_, err := e.Apply(ctx, inventory.Intent{MaterialID: 1, Type: inventory.TypeReceipt, Quantity: dec("100"), To: &a, PerformedBy: 1})
	require.NoError(t, err)
	_, err = e.Apply(ctx, inventory.Intent{MaterialID: 1, Type: inventory.TypeIssue, Quantity: dec("30"), From: &a, ProjectID: 9, PerformedBy: 1})
	require.NoError(t, err)
	tr, err := e.Apply(ctx, inventory.Intent{MaterialID: 1, Type: inventory.TypeTransfer, Quantity: dec("50"), From: &a, To: &b, PerformedBy: 1})
	require.NoError(t, err)
	require.NotNil(t, tr.From)
	assert.Equal(t, a, *tr.From)

	_, err = e.Apply(ctx, inventory.Intent{MaterialID: 1, Type: inventory.TypeIssue, Quantity: dec("25"), From: &a, PerformedBy: 1})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	pa, err := e.Position(ctx, inventory.KeyOf(1, a))
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(pa.Quantity))

	for _, side := range []inventory.Side{a, b} {
		r, err := e.Reconcile(ctx, inventory.KeyOf(1, side))
		require.NoError(t, err)
		assert.True(t, r.Consistent, side)
	}

	usage, err := e.ProjectUsage(ctx, 1, 9)
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(usage))
}

func TestPGStore_ConcurrentIssuesAcrossEngines(t *testing.T) {
	_, pool := newPGEngine(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := inventory.Side{WarehouseID: 1}

	// Два движка = два процесса: сериализует только Postgres.
	e1 := inventory.NewEngine(inventory.NewPGStore(pool, 2*time.Second), log, inventory.Options{})
	e2 := inventory.NewEngine(inventory.NewPGStore(pool, 2*time.Second), log, inventory.Options{})

	_, err := e1.Apply(ctx, inventory.Intent{MaterialID: 3, Type: inventory.TypeReceipt, Quantity: dec("10"), To: &at, PerformedBy: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i, e := range []*inventory.Engine{e1, e2, e1, e2} {
		wg.Add(1)
		go func(i int, e *inventory.Engine) {
			defer wg.Done()
			_, err := e.Apply(ctx, inventory.Intent{MaterialID: 3, Type: inventory.TypeIssue, Quantity: dec("4"), From: &at, PerformedBy: int64(i + 1)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i, e)
	}
	wg.Wait()

	assert.Equal(t, 2, wins)
	p, err := e1.Position(ctx, inventory.KeyOf(3, at))
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(p.Quantity))
}

func TestPGStore_LogIsAppendOnly(t *testing.T) {
	e, pool := newPGEngine(t)
	ctx := context.Background()
	at := inventory.Side{WarehouseID: 1}
	rec, err := e.Apply(ctx, inventory.Intent{MaterialID: 1, Type: inventory.TypeReceipt, Quantity: dec("1"), To: &at, PerformedBy: 1})
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE stock_transactions SET quantity = 2 WHERE id = $1`, rec.ID)
	require.Error(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM stock_transactions WHERE id = $1`, rec.ID)
	require.Error(t, err)
}

func TestPGStore_CheckConstraintMapsToNegativeStock(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := inventory.NewPGStore(pool, time.Second)
	key := inventory.Key{MaterialID: 5, WarehouseID: 1}

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.ApplyDelta(ctx, key, dec("-1"))
	require.ErrorIs(t, err, inventory.ErrNegativeStock)
}

func TestPGStore_ThresholdAndLowPositions(t *testing.T) {
	e, _ := newPGEngine(t)
	ctx := context.Background()
	at := inventory.Side{WarehouseID: 4}
	key := inventory.KeyOf(8, at)

	_, err := e.Apply(ctx, inventory.Intent{MaterialID: 8, Type: inventory.TypeReceipt, Quantity: dec("2.5"), To: &at, PerformedBy: 1})
	require.NoError(t, err)
	_, err = e.SetThreshold(ctx, key, decimal.NewNullDecimal(dec("3")), true)
	require.NoError(t, err)

	low, err := e.Positions(ctx, inventory.PositionFilter{LowOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, key, low[0].Key)
	assert.True(t, dec("3").Equal(low[0].MinQuantity.Decimal))
}
