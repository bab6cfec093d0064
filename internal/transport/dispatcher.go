package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher copies values from one source to multiple subscribers.
// When a subscriber's buffer is full the value is dropped for that
// subscriber so a slow sink never stalls the live view. Drops are counted.
type Dispatcher[T any] struct {
	source       <-chan T
	subscribers  []chan T
	bufferSize   int
	mu           sync.Mutex
	droppedTotal atomic.Int64
}

func NewDispatcher[T any](source <-chan T, bufferSize int) *Dispatcher[T] {
	return &Dispatcher[T]{
		source:      source,
		subscribers: make([]chan T, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel that receives copies of all source values.
// Subscribers should be added before calling Run() to receive everything.
func (d *Dispatcher[T]) Subscribe() <-chan T {
	ch := make(chan T, d.bufferSize)
	d.mu.Lock()
	d.subscribers = append(d.subscribers, ch)
	d.mu.Unlock()
	return ch
}

// GetSubscriberCount returns the current number of subscribers
func (d *Dispatcher[T]) GetSubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

// GetDroppedCount returns how many deliveries were dropped on full buffers
func (d *Dispatcher[T]) GetDroppedCount() int64 {
	return d.droppedTotal.Load()
}

// Run blocks until ctx is cancelled or source closes, then closes every
// subscriber channel.
func (d *Dispatcher[T]) Run(ctx context.Context) {
	defer d.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-d.source:
			if !ok {
				return
			}
			d.dispatch(ctx, v)
		}
	}
}

func (d *Dispatcher[T]) dispatch(ctx context.Context, v T) {
	d.mu.Lock()
	subs := d.subscribers
	d.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- v:
		case <-ctx.Done():
			return
		default:
			dropped++
			d.droppedTotal.Add(1)
		}
	}

	if dropped > 0 {
		slog.Debug("dispatcher dropped value", "subscribers", dropped, "dropped_total", d.droppedTotal.Load())
	}
}

func (d *Dispatcher[T]) closeSubscribers() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sub := range d.subscribers {
		close(sub)
	}
}
