package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemStore — хранилище в памяти: режим storage=memory и тесты.
type MemStore struct {
	mu        sync.Mutex
	positions map[Key]Position
	log       []Record
	nextID    int64
	now       func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{positions: map[Key]Position{}, now: time.Now}
}

func (s *MemStore) Begin(_ context.Context) (StoreTx, error) {
	return &memTx{s: s, deltas: map[Key]decimal.Decimal{}}, nil
}

func (s *MemStore) Position(_ context.Context, key Key) (Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[key]
	return p, ok, nil
}

func (s *MemStore) Positions(_ context.Context, f PositionFilter) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

func (s *MemStore) History(_ context.Context, key Key) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.log {
		if r.Touches(key) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemStore) Records(_ context.Context, f RecordFilter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.log {
		if !f.Match(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) SetThreshold(_ context.Context, key Key, min decimal.NullDecimal, monitor bool) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[key]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	p.MinQuantity = min
	p.MonitorStockLevel = monitor
	p.UpdatedAt = s.now()
	s.positions[key] = p
	return p, nil
}

type memTx struct {
	s       *MemStore
	deltas  map[Key]decimal.Decimal
	order   []Key
	pending []Record
	done    bool
}

var errTxDone = errors.New("inventory: transaction already finished")

func (t *memTx) current(key Key) (Position, bool) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.positions[key]
	return p, ok
}

func (t *memTx) Get(_ context.Context, key Key) (decimal.Decimal, error) {
	if t.done {
		return decimal.Zero, errTxDone
	}
	p, _ := t.current(key)
	return p.Quantity.Add(t.deltas[key]), nil
}

func (t *memTx) ApplyDelta(_ context.Context, key Key, delta decimal.Decimal) (Position, error) {
	if t.done {
		return Position{}, errTxDone
	}
	p, ok := t.current(key)
	if !ok {
		p = Position{Key: key}
	}
	acc := t.deltas[key].Add(delta)
	next := p.Quantity.Add(acc)
	if next.IsNegative() {
		return Position{}, &StockError{Kind: ErrNegativeStock, Key: key, Available: p.Quantity.Add(t.deltas[key]), Requested: delta.Neg()}
	}
	if _, seen := t.deltas[key]; !seen {
		t.order = append(t.order, key)
	}
	t.deltas[key] = acc
	p.Quantity = next
	return p, nil
}

func (t *memTx) Append(_ context.Context, rec *Record) error {
	if t.done {
		return errTxDone
	}
	t.s.mu.Lock()
	t.s.nextID++
	rec.ID = t.s.nextID
	rec.CreatedAt = t.s.now()
	t.s.mu.Unlock()
	t.pending = append(t.pending, *rec)
	return nil
}

// Commit повторно проверяет неотрицательность уже под общим мьютексом:
// дельты накладываются на то, что закоммичено на этот момент.
func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := t.s.now()
	next := make(map[Key]Position, len(t.order))
	for _, k := range t.order {
		p, ok := t.s.positions[k]
		if !ok {
			p = Position{Key: k, CreatedAt: now}
		}
		q := p.Quantity.Add(t.deltas[k])
		if q.IsNegative() {
			return &StockError{Kind: ErrNegativeStock, Key: k, Available: p.Quantity, Requested: t.deltas[k].Neg()}
		}
		p.Quantity = q
		p.UpdatedAt = now
		next[k] = p
	}
	for k, p := range next {
		t.s.positions[k] = p
	}
	t.s.log = append(t.s.log, t.pending...)
	sort.SliceStable(t.s.log, func(i, j int) bool { return t.s.log[i].ID < t.s.log[j].ID })
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}
