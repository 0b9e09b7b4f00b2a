package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/domain/notify"
)

type fakeRedis struct {
	lists map[string][][]byte
	err   error
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		cmd := redis.NewIntCmd(ctx)
		cmd.SetErr(f.err)
		return cmd
	}
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.([]byte))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func TestPublisher_StockChanged(t *testing.T) {
	rdb := &fakeRedis{lists: map[string][][]byte{}}
	p := NewPublisher(rdb, "ledger:stock", "ledger:alerts")

	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	ev := inventory.StockChanged{
		Key:           inventory.Key{MaterialID: 1, WarehouseID: 2},
		TransactionID: 5,
		Previous:      decimal.RequireFromString("10"),
		Quantity:      decimal.RequireFromString("4"),
		OccurredAt:    at,
	}
	require.NoError(t, p.OnStockChanged(context.Background(), ev))
	require.Len(t, rdb.lists["ledger:stock"], 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(rdb.lists["ledger:stock"][0], &env))
	assert.Equal(t, TypeStockChanged, env.Type)
	assert.True(t, at.Equal(env.OccurredAt))
	_, err := uuid.Parse(env.ID)
	assert.NoError(t, err)

	var got inventory.StockChanged
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, ev.Key, got.Key)
	assert.True(t, ev.Quantity.Equal(got.Quantity))
}

func TestPublisher_DeliverNotification(t *testing.T) {
	rdb := &fakeRedis{lists: map[string][][]byte{}}
	p := NewPublisher(rdb, "ledger:stock", "ledger:alerts")

	n := notify.Notification{Title: "low", Subject: notify.Ref{Kind: notify.KindMaterial, ID: 3}}
	require.NoError(t, p.Deliver(context.Background(), n))
	require.Len(t, rdb.lists["ledger:alerts"], 1)
	assert.Empty(t, rdb.lists["ledger:stock"])

	var env Envelope
	require.NoError(t, json.Unmarshal(rdb.lists["ledger:alerts"][0], &env))
	assert.Equal(t, TypeLowStock, env.Type)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Contains(t, string(env.Payload), `"subject":"material:3"`)
}

func TestPublisher_PushError(t *testing.T) {
	p := NewPublisher(&fakeRedis{err: errors.New("connection refused")}, "s", "a")
	err := p.Deliver(context.Background(), notify.Notification{Subject: notify.Ref{Kind: notify.KindMaterial, ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue: push a")
}
