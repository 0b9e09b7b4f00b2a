package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys_DedupesAndOrders(t *testing.T) {
	a := Key{MaterialID: 1, WarehouseID: 2}
	b := Key{MaterialID: 1, WarehouseID: 1, LocationID: 9}
	c := Key{MaterialID: 0, WarehouseID: 5}

	assert.Equal(t, []Key{c, b, a}, sortedKeys([]Key{a, b, a, c}))
}

func TestKeyLocks_ReleaseFreesSlots(t *testing.T) {
	l := newKeyLocks(time.Second)
	a := Key{MaterialID: 1, WarehouseID: 1}
	b := Key{MaterialID: 1, WarehouseID: 2}

	unlock, err := l.acquire(context.Background(), b, a)
	require.NoError(t, err)
	assert.Equal(t, 2, l.size())

	unlock()
	unlock() // повторный вызов безопасен
	assert.Zero(t, l.size())
}

func TestKeyLocks_TimeoutReleasesPartialHold(t *testing.T) {
	l := newKeyLocks(20 * time.Millisecond)
	a := Key{MaterialID: 1, WarehouseID: 1}
	b := Key{MaterialID: 1, WarehouseID: 2}

	holdB, err := l.acquire(context.Background(), b)
	require.NoError(t, err)

	_, err = l.acquire(context.Background(), a, b)
	require.ErrorIs(t, err, ErrBusy)

	// a должен быть свободен после неудачи.
	holdA, err := l.acquire(context.Background(), a)
	require.NoError(t, err)
	holdA()
	holdB()
	assert.Zero(t, l.size())
}

func TestKeyLocks_CancelledContext(t *testing.T) {
	l := newKeyLocks(time.Second)
	k := Key{MaterialID: 1, WarehouseID: 1}
	hold, err := l.acquire(context.Background(), k)
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.acquire(ctx, k)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBusy)
}
