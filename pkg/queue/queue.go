// Package queue implements qworker's execution engine: a bounded FIFO
// queue drained by a fixed pool of consumer goroutines for background
// work, and a semaphore-bounded runner that gives each immediate-mode
// task its own context disjoint from the server's accept loop.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/qworkerhq/qworker/internal/codec"
	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
	"github.com/qworkerhq/qworker/pkg/envelope"
	"github.com/qworkerhq/qworker/pkg/handler"
	"github.com/rs/zerolog"
)

// Item is one unit of work placed on the bounded queue or run immediately.
type Item struct {
	CorrelationID string
	HandlerID     string
	Args          []json.RawMessage
	Kwargs        map[string]json.RawMessage
	Domain        *codec.DomainTask
}

// ErrFull is returned by Enqueue when the bounded queue is at capacity.
// It is never a blocking condition: the caller always gets an immediate
// answer, matching the "never block the accept loop" invariant.
var ErrFull = fmt.Errorf("queue is full")

// Queue is a bounded FIFO of Items drained by a fixed consumer pool. The
// consumer count equals the queue's capacity for the life of the worker.
type Queue struct {
	name          string
	items         chan Item
	handlers      *handler.Registry
	domainFactory envelope.DomainRunnerFactory

	busy   int32
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Queue bound to capacity, dispatching accepted items
// through handlers and, for DomainTask items, through domainFactory.
func New(name string, capacity int, handlers *handler.Registry, domainFactory envelope.DomainRunnerFactory) *Queue {
	metrics.QueueCapacity.Set(float64(capacity))
	return &Queue{
		name:          name,
		items:         make(chan Item, capacity),
		handlers:      handlers,
		domainFactory: domainFactory,
	}
}

// Cap returns the queue's configured capacity.
func (q *Queue) Cap() int { return cap(q.items) }

// Len returns the number of items currently waiting.
func (q *Queue) Len() int { return len(q.items) }

// Empty reports whether the queue currently holds no items.
func (q *Queue) Empty() bool { return q.Len() == 0 }

// Full reports whether the queue is at capacity.
func (q *Queue) Full() bool { return q.Len() == q.Cap() }

// ConsumersBusy returns the number of consumer goroutines currently
// executing an item.
func (q *Queue) ConsumersBusy() int { return int(atomic.LoadInt32(&q.busy)) }

// Enqueue attempts to place item on the queue without blocking. It
// returns ErrFull if the queue is already at capacity.
func (q *Queue) Enqueue(item Item) error {
	select {
	case q.items <- item:
		metrics.QueueEnqueuedTotal.Inc()
		metrics.QueueDepth.Set(float64(q.Len()))
		return nil
	default:
		metrics.QueueRejectedTotal.Inc()
		return ErrFull
	}
}

// Start spawns n consumer goroutines, each pulling items off the queue
// until ctx is cancelled. Start must be called at most once per Queue.
func (q *Queue) Start(ctx context.Context, n int) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.consume(ctx, i)
	}
}

func (q *Queue) consume(ctx context.Context, id int) {
	defer q.wg.Done()
	consumerLog := log.WithComponent("queue").With().Str("queue", q.name).Int("consumer", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			metrics.QueueDepth.Set(float64(q.Len()))
			q.run(ctx, item, consumerLog)
		}
	}
}

func (q *Queue) run(ctx context.Context, item Item, consumerLog zerolog.Logger) {
	atomic.AddInt32(&q.busy, 1)
	metrics.QueueConsumersBusy.Set(float64(atomic.LoadInt32(&q.busy)))
	defer func() {
		atomic.AddInt32(&q.busy, -1)
		metrics.QueueConsumersBusy.Set(float64(atomic.LoadInt32(&q.busy)))
	}()

	_, err := Dispatch(ctx, item, q.handlers, q.domainFactory)
	if err != nil {
		consumerLog.Error().
			Err(err).
			Str("correlation_id", item.CorrelationID).
			Msg("queued item failed")
	}
}

// Stop cancels the consumer pool and drains any items still waiting by
// issuing non-blocking receives until the queue is empty, then waits for
// in-flight consumers to return. Draining never blocks on work a
// consumer would otherwise have picked up.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	for {
		select {
		case <-q.items:
			metrics.QueueDepth.Set(float64(q.Len()))
		default:
			q.wg.Wait()
			return
		}
	}
}
