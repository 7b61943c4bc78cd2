package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by MemoryBus.Publish when the destination buffer
// has no room left.
var ErrQueueFull = errors.New("queue buffer full")

// memoryQueueDepth is the per-queue buffer size of the in-process transport.
const memoryQueueDepth = 128

// MemoryBus is an in-process Transport used by tests and local wiring. It
// mirrors the broker's at-least-once contract: a Nack with requeue puts the
// message back at the end of the queue.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string]chan *memoryDelivery
}

// NewMemoryBus returns an empty in-process transport.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{queues: make(map[string]chan *memoryDelivery)}
}

func (b *MemoryBus) queue(name string) chan *memoryDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan *memoryDelivery, memoryQueueDepth)
		b.queues[name] = q
	}
	return q
}

// Publish enqueues body on the named queue. It fails with ErrQueueFull rather
// than blocking, so a stuck consumer surfaces as an error instead of a hang.
func (b *MemoryBus) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := &memoryDelivery{bus: b, queue: queue, body: body}
	select {
	case b.queue(queue) <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe returns a delivery channel for the named queue. The returned
// channel is closed when ctx is canceled.
func (b *MemoryBus) Subscribe(ctx context.Context, queue string) (<-chan Delivery, error) {
	src := b.queue(queue)
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-src:
				select {
				case <-ctx.Done():
					return
				case out <- d:
				}
			}
		}
	}()
	return out, nil
}

// Depth returns the number of messages currently buffered on the named queue.
// Test helper; production code observes depth via broker tooling.
func (b *MemoryBus) Depth(queue string) int {
	return len(b.queue(queue))
}

type memoryDelivery struct {
	bus   *MemoryBus
	queue string
	body  []byte
}

func (d *memoryDelivery) Body() []byte { return d.body }

func (d *memoryDelivery) Ack() error { return nil }

func (d *memoryDelivery) Nack(requeue bool) error {
	if !requeue {
		return nil
	}
	select {
	case d.bus.queue(d.queue) <- d:
		return nil
	default:
		return ErrQueueFull
	}
}
