package inventory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// outbox — очередь событий после фиксации. Apply под блокировкой позиции
// только кладёт событие; доставляет одна горутина в порядке постановки,
// поэтому по одной позиции события идут в порядке фиксаций.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pending
	busy   bool
	closed bool
	done   chan struct{}

	listeners []Listener
	timeout   time.Duration
	log       *slog.Logger
}

type pending struct {
	ctx context.Context
	ev  StockChanged
}

func newOutbox(listeners []Listener, timeout time.Duration, log *slog.Logger) *outbox {
	o := &outbox{
		done:      make(chan struct{}),
		listeners: listeners,
		timeout:   timeout,
		log:       log,
	}
	o.cond = sync.NewCond(&o.mu)
	go o.run()
	return o
}

func (o *outbox) subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// push не блокируется. Отмена запроса не отменяет доставку: движение уже зафиксировано.
func (o *outbox) push(ctx context.Context, ev StockChanged) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.log.Warn("outbox closed, event dropped", "key", ev.Key.String(), "tx", ev.TransactionID)
		return
	}
	o.queue = append(o.queue, pending{ctx: context.WithoutCancel(ctx), ev: ev})
	o.cond.Broadcast()
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		for len(o.queue) == 0 && !o.closed {
			o.cond.Wait()
		}
		if len(o.queue) == 0 {
			o.mu.Unlock()
			return
		}
		p := o.queue[0]
		o.queue[0] = pending{}
		o.queue = o.queue[1:]
		o.busy = true
		listeners := o.listeners
		o.mu.Unlock()

		o.deliver(p, listeners)

		o.mu.Lock()
		o.busy = false
		o.cond.Broadcast()
		o.mu.Unlock()
	}
}

func (o *outbox) deliver(p pending, listeners []Listener) {
	for _, l := range listeners {
		ctx, cancel := context.WithTimeout(p.ctx, o.timeout)
		err := l.OnStockChanged(ctx, p.ev)
		cancel()
		if err != nil {
			o.log.Warn("stock listener failed", "key", p.ev.Key.String(), "tx", p.ev.TransactionID, "err", err)
		}
	}
}

// flush ждёт, пока очередь опустеет и текущая доставка закончится.
func (o *outbox) flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		o.mu.Lock()
		o.cond.Broadcast()
		o.mu.Unlock()
	})
	defer stop()

	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) > 0 || o.busy {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.cond.Wait()
	}
	return nil
}

// close доставляет остаток очереди и останавливает горутину.
func (o *outbox) close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		o.cond.Broadcast()
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		o.mu.Lock()
		left := len(o.queue)
		o.mu.Unlock()
		o.log.Error("outbox not drained", "left", left, "err", ctx.Err())
		return ctx.Err()
	}
}
