package kafkabus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/water-heater/internal/logic"
)

// DefaultQueueSize is how many records may wait for the broker.
const DefaultQueueSize = 64

// ErrQueueFull is returned when a record is dropped because the writer
// has fallen behind.
var ErrQueueFull = errors.New("kafka mirror queue full")

// ErrQueueClosed is returned for records offered after Close.
var ErrQueueClosed = errors.New("kafka mirror queue closed")

// Sink is where queued records end up. *Mirror is the production Sink.
type Sink interface {
	PublishReading(ctx context.Context, ts time.Time, raw float64, res logic.Result) error
	PublishTransition(ctx context.Context, e logic.Event) error
}

type job struct {
	kind  string
	write func(ctx context.Context) error
}

// Queue hands records to a single writer goroutine so callers never wait
// on the broker. Each write is bounded by timeout.
type Queue struct {
	sink    Sink
	timeout time.Duration
	jobs    chan job
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue starts the writer goroutine. Close stops it.
func NewQueue(sink Sink, size int, timeout time.Duration) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		sink:    sink,
		timeout: timeout,
		jobs:    make(chan job, size),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go q.run()
	return q
}

// PublishReading queues a reading. The context is unused; the write gets
// its own deadline.
func (q *Queue) PublishReading(_ context.Context, ts time.Time, raw float64, res logic.Result) error {
	return q.enqueue(job{kind: KindReading, write: func(ctx context.Context) error {
		return q.sink.PublishReading(ctx, ts, raw, res)
	}})
}

// PublishTransition queues a heater transition.
func (q *Queue) PublishTransition(_ context.Context, e logic.Event) error {
	return q.enqueue(job{kind: KindTransition, write: func(ctx context.Context) error {
		return q.sink.PublishTransition(ctx, e)
	}})
}

func (q *Queue) enqueue(j job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		return nil
	default:
		if q.dropped.Add(1) == 1 {
			log.WithField("size", cap(q.jobs)).Warn("kafka mirror falling behind, dropping records")
		}
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		err := j.write(ctx)
		cancel()
		if err != nil {
			log.WithError(err).WithField("kind", j.kind).Debug("kafka mirror write failed")
		}
	}
}

// Dropped reports how many records were refused since start.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting records and waits up to one write timeout for the
// backlog. Whatever is left after that is abandoned. The Sink is not closed.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()
	select {
	case <-q.done:
	case <-timer.C:
		q.cancel()
		<-q.done
	}
	q.cancel()
	return nil
}
