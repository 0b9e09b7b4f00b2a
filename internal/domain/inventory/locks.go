package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// keyLocks — по одному писателю на позицию. Слоты живут, пока на них кто-то ссылается.
type keyLocks struct {
	mu    sync.Mutex
	slots map[Key]*keySlot
	wait  time.Duration
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks(wait time.Duration) *keyLocks {
	return &keyLocks{slots: map[Key]*keySlot{}, wait: wait}
}

func sortedKeys(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// acquire берёт блокировки всех ключей по возрастанию. По истечении wait — ErrBusy.
func (l *keyLocks) acquire(ctx context.Context, keys ...Key) (func(), error) {
	keys = sortedKeys(keys)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	held := make([]Key, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, k := range keys {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-waitCtx.Done():
			l.unref(k)
			release()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s: waited %s", ErrBusy, k, l.wait)
			}
			return nil, waitCtx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *keyLocks) ref(k Key) *keySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		s = &keySlot{ch: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.refs++
	return s
}

func (l *keyLocks) unref(k Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, k)
	}
}

func (l *keyLocks) unlock(k Key) {
	l.mu.Lock()
	s := l.slots[k]
	l.mu.Unlock()
	if s != nil {
		<-s.ch
	}
	l.unref(k)
}

// size — число живых слотов, для тестов.
func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
