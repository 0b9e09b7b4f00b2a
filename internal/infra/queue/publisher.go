package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/domain/notify"
)

const (
	TypeStockChanged = "stock.changed"
	TypeLowStock     = "stock.low"
)

// Envelope — то, что лежит в списке Redis.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Publisher кладёт события движка и уведомления в очереди Redis (LPUSH).
// Потребители забирают их BRPOP.
type Publisher struct {
	rdb        pusher
	stockQueue string
	alertQueue string
	now        func() time.Time
}

func NewPublisher(rdb pusher, stockQueue, alertQueue string) *Publisher {
	return &Publisher{rdb: rdb, stockQueue: stockQueue, alertQueue: alertQueue, now: time.Now}
}

// Connect разбирает redis://... и проверяет соединение.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("queue: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue: ping: %w", err)
	}
	return rdb, nil
}

func (p *Publisher) publish(ctx context.Context, queue, typ string, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = p.now()
	}
	env, err := json.Marshal(Envelope{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC(), Payload: data})
	if err != nil {
		return err
	}
	if err := p.rdb.LPush(ctx, queue, env).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", queue, err)
	}
	return nil
}

// OnStockChanged — слушатель движка.
func (p *Publisher) OnStockChanged(ctx context.Context, ev inventory.StockChanged) error {
	return p.publish(ctx, p.stockQueue, TypeStockChanged, ev.OccurredAt, ev)
}

func (p *Publisher) Name() string { return "redis" }

// Deliver — канал уведомлений.
func (p *Publisher) Deliver(ctx context.Context, n notify.Notification) error {
	return p.publish(ctx, p.alertQueue, TypeLowStock, n.CreatedAt, n)
}
