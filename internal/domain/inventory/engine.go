package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Listener получает StockChanged после фиксации движения, асинхронно,
// с таймаутом на вызов. Ошибка слушателя не откатывает движение, только логируется.
type Listener interface {
	OnStockChanged(ctx context.Context, ev StockChanged) error
}

// Resolver проверяет ссылки заявки по справочнику (материал, склады, ячейки).
type Resolver interface {
	Resolve(ctx context.Context, materialID int64, sides ...Side) error
}

// Metrics — то, что движок сообщает наружу. nil допустим.
type Metrics interface {
	ObserveApply(t Type, result string)
	ObserveLockWait(d time.Duration)
}

type Options struct {
	LockWait       time.Duration
	DeliverTimeout time.Duration // на один вызов слушателя
	Resolver       Resolver
	Listeners      []Listener
	Metrics        Metrics
}

type Engine struct {
	store    Store
	locks    *keyLocks
	log      *slog.Logger
	resolver Resolver
	events   *outbox
	metrics  Metrics
}

const (
	defaultLockWait       = 3 * time.Second
	defaultDeliverTimeout = 10 * time.Second
)

func NewEngine(store Store, log *slog.Logger, opts Options) *Engine {
	wait := opts.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	deliver := opts.DeliverTimeout
	if deliver <= 0 {
		deliver = defaultDeliverTimeout
	}
	return &Engine{
		store:    store,
		locks:    newKeyLocks(wait),
		log:      log,
		resolver: opts.Resolver,
		events:   newOutbox(opts.Listeners, deliver, log),
		metrics:  opts.Metrics,
	}
}

// Subscribe добавляет слушателя.
func (e *Engine) Subscribe(l Listener) { e.events.subscribe(l) }

// Flush ждёт доставки всех уже поставленных событий.
func (e *Engine) Flush(ctx context.Context) error { return e.events.flush(ctx) }

// Close доставляет оставшиеся события; после него события отбрасываются.
func (e *Engine) Close(ctx context.Context) error { return e.events.close(ctx) }

type change struct {
	key   Key
	delta decimal.Decimal
	prev  decimal.Decimal
	pos   Position
}

// Apply проверяет заявку, применяет её атомарно и возвращает запись журнала.
func (e *Engine) Apply(ctx context.Context, in Intent) (Record, error) {
	rec, err := e.apply(ctx, in)
	e.observe(in.Type, err)
	return rec, err
}

func (e *Engine) apply(ctx context.Context, in Intent) (Record, error) {
	if err := Validate(in); err != nil {
		return Record{}, err
	}
	if e.resolver != nil {
		if err := e.resolver.Resolve(ctx, in.MaterialID, in.sides()...); err != nil {
			return Record{}, err
		}
	}

	keys := in.keys()
	started := time.Now()
	unlock, err := e.locks.acquire(ctx, keys...)
	if e.metrics != nil {
		e.metrics.ObserveLockWait(time.Since(started))
	}
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Record{}, classify("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Блокируем строки в том же порядке, что и ключи.
	current := make(map[Key]decimal.Decimal, len(keys))
	for _, k := range sortedKeys(keys) {
		q, err := tx.Get(ctx, k)
		if err != nil {
			return Record{}, classify("get", err)
		}
		current[k] = q
	}

	rec, err := plan(in, current)
	if err != nil {
		return Record{}, err
	}

	var changes []change
	if rec.From != nil {
		changes = append(changes, change{key: KeyOf(rec.MaterialID, *rec.From), delta: rec.Quantity.Neg()})
	}
	if rec.To != nil {
		changes = append(changes, change{key: KeyOf(rec.MaterialID, *rec.To), delta: rec.Quantity})
	}
	for i := range changes {
		c := &changes[i]
		c.prev = current[c.key]
		pos, err := tx.ApplyDelta(ctx, c.key, c.delta)
		if err != nil {
			err = classify("apply delta", err)
			if errors.Is(err, ErrNegativeStock) {
				e.log.Error("negative stock guard triggered", "key", c.key.String(), "delta", c.delta.String(), "err", err)
			}
			return Record{}, err
		}
		c.pos = pos
	}

	if err := tx.Append(ctx, &rec); err != nil {
		return Record{}, classify("append", err)
	}
	if err := tx.Commit(ctx); err != nil {
		err = classify("commit", err)
		if errors.Is(err, ErrNegativeStock) {
			e.log.Error("negative stock guard triggered on commit", "material_id", rec.MaterialID, "err", err)
		}
		return Record{}, err
	}

	e.log.Debug("transaction applied",
		"id", rec.ID, "type", string(rec.Type), "material_id", rec.MaterialID, "qty", rec.Quantity.String())

	// В очередь под блокировкой: по одной позиции порядок событий = порядок фиксаций.
	for _, c := range changes {
		e.events.push(ctx, StockChanged{
			Key:               c.key,
			TransactionID:     rec.ID,
			Previous:          c.prev,
			Quantity:          c.pos.Quantity,
			MinQuantity:       c.pos.MinQuantity,
			MonitorStockLevel: c.pos.MonitorStockLevel,
			OccurredAt:        rec.CreatedAt,
		})
	}
	return rec, nil
}

// plan строит запись по заявке и текущим остаткам (под блокировкой).
func plan(in Intent, current map[Key]decimal.Decimal) (Record, error) {
	rec := Record{
		MaterialID:          in.MaterialID,
		Type:                in.Type,
		Quantity:            in.Quantity,
		From:                in.From,
		To:                  in.To,
		ProjectID:           in.ProjectID,
		PurchaseOrderItemID: in.PurchaseOrderItemID,
		PerformedBy:         in.PerformedBy,
		IsGeneralUse:        in.IsGeneralUse,
		Notes:               in.Notes,
	}

	switch in.Type {
	case TypeIssue, TypeTransfer:
		k := KeyOf(in.MaterialID, *in.From)
		if avail := current[k]; in.Quantity.GreaterThan(avail) {
			return Record{}, &StockError{Kind: ErrInsufficientStock, Key: k, Available: avail, Requested: in.Quantity}
		}
	case TypeAdjustment:
		at := *in.At
		cur := current[KeyOf(in.MaterialID, at)]
		delta := in.Target.Decimal.Sub(cur)
		switch delta.Sign() {
		case 0:
			return Record{}, ErrNothingToAdjust
		case 1:
			rec.To = &at
		default:
			rec.From = &at
		}
		rec.Quantity = delta.Abs()
		rec.Counted = in.Target
	}
	return rec, nil
}

func (e *Engine) observe(t Type, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveApply(t, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrInvalidTransaction):
		return "invalid"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient"
	case errors.Is(err, ErrNegativeStock):
		return "negative"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "failed"
	}
}

// classify оставляет ошибки таксономии как есть, остальное — сбой хранилища.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrNegativeStock),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrStorageFailure),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return storageErr(op, err)
}

// Position — текущий остаток; для несуществующей позиции нулевой.
func (e *Engine) Position(ctx context.Context, key Key) (Position, error) {
	p, ok, err := e.store.Position(ctx, key)
	if err != nil {
		return Position{}, classify("position", err)
	}
	if !ok {
		return Position{Key: key}, nil
	}
	return p, nil
}

func (e *Engine) Positions(ctx context.Context, f PositionFilter) ([]Position, error) {
	ps, err := e.store.Positions(ctx, f)
	if err != nil {
		return nil, classify("positions", err)
	}
	return ps, nil
}

func (e *Engine) History(ctx context.Context, key Key) ([]Record, error) {
	h, err := e.store.History(ctx, key)
	if err != nil {
		return nil, classify("history", err)
	}
	return h, nil
}

func (e *Engine) Records(ctx context.Context, f RecordFilter) ([]Record, error) {
	rs, err := e.store.Records(ctx, f)
	if err != nil {
		return nil, classify("records", err)
	}
	return rs, nil
}

// SetThreshold меняет порог под блокировкой позиции.
func (e *Engine) SetThreshold(ctx context.Context, key Key, min decimal.NullDecimal, monitor bool) (Position, error) {
	if min.Valid && (min.Decimal.IsNegative() || !min.Decimal.Equal(min.Decimal.Round(2))) {
		return Position{}, invalidf("min quantity must be a non-negative amount with at most 2 decimals, got %s", min.Decimal)
	}
	unlock, err := e.locks.acquire(ctx, key)
	if err != nil {
		return Position{}, err
	}
	defer unlock()
	p, err := e.store.SetThreshold(ctx, key, min, monitor)
	if err != nil {
		if errors.Is(err, ErrPositionNotFound) {
			return Position{}, err
		}
		return Position{}, classify("set threshold", err)
	}
	return p, nil
}

type Reconciliation struct {
	Key        Key             `json:"key"`
	Stored     decimal.Decimal `json:"stored"`
	Rebuilt    decimal.Decimal `json:"rebuilt"`
	Entries    int             `json:"entries"`
	Consistent bool            `json:"consistent"`
}

// Reconcile сверяет остаток с суммой журнала. Под блокировкой, чтобы не поймать середину движения.
func (e *Engine) Reconcile(ctx context.Context, key Key) (Reconciliation, error) {
	unlock, err := e.locks.acquire(ctx, key)
	if err != nil {
		return Reconciliation{}, err
	}
	defer unlock()

	p, err := e.Position(ctx, key)
	if err != nil {
		return Reconciliation{}, err
	}
	h, err := e.History(ctx, key)
	if err != nil {
		return Reconciliation{}, err
	}
	rebuilt := Rebuild(key, h)
	r := Reconciliation{
		Key:        key,
		Stored:     p.Quantity,
		Rebuilt:    rebuilt,
		Entries:    len(h),
		Consistent: p.Quantity.Equal(rebuilt),
	}
	if !r.Consistent {
		e.log.Error("ledger mismatch", "key", key.String(), "stored", p.Quantity.String(), "rebuilt", rebuilt.String())
	}
	return r, nil
}

// ProjectUsage — сколько материала выдано на проект.
func (e *Engine) ProjectUsage(ctx context.Context, materialID, projectID int64) (decimal.Decimal, error) {
	rs, err := e.Records(ctx, RecordFilter{MaterialID: materialID, ProjectID: projectID, Type: TypeIssue})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rs {
		total = total.Add(r.Quantity)
	}
	return total, nil
}

func (e *Engine) String() string { return fmt.Sprintf("inventory.Engine(%T)", e.store) }
