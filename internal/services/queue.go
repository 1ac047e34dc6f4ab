package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spendwise/internal/log"
	"spendwise/internal/metrics"
)

// ErrQueueClosed is returned for work submitted after Close.
var ErrQueueClosed = errors.New("write queue closed")

// Task is the pending result of queued work.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

func (t *Task[T]) complete(v T, err error) {
	t.val, t.err = v, err
	close(t.done)
}

// Done is closed once the work has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the work finishes or ctx is done. Giving up on ctx does
// not stop the work itself.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then runs fn on the result from its own goroutine once the task is done.
func (t *Task[T]) Then(fn func(T, error)) {
	go func() {
		<-t.done
		fn(t.val, t.err)
	}()
}

type job func(ctx context.Context)

// WriteQueue applies submitted work one item at a time, in submission order,
// on a single background goroutine.
type WriteQueue struct {
	mu      sync.Mutex
	pending []job
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
	logger  *log.Logger
}

func NewWriteQueue(logger *log.Logger) *WriteQueue {
	if logger == nil {
		logger = log.Default()
	}
	q := &WriteQueue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger.WithComponent(log.ComponentQueue),
	}
	go q.run()
	return q
}

// Submit queues fn and returns its Task. fn receives a context that is never
// cancelled: once started, work runs to completion.
func Submit[T any](q *WriteQueue, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	submitted := time.Now()
	err := q.enqueue(func(ctx context.Context) {
		v, err := safeCall(fn, ctx)
		metrics.ObserveSince(metrics.QueueLatency, submitted)
		t.complete(v, err)
	})
	if err != nil {
		var zero T
		t.complete(zero, err)
	}
	return t
}

func safeCall[T any](fn func(context.Context) (T, error), ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued write panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (q *WriteQueue) enqueue(j job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, j)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *WriteQueue) run() {
	defer close(q.stopped)
	ctx := context.Background()
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				closed := q.closed
				q.mu.Unlock()
				if closed {
					return
				}
				break
			}
			next := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()

			next(ctx)
		}
	}
}

// Close stops accepting work, lets everything already queued finish and
// waits for the worker to exit.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	<-q.stopped
	q.logger.Info("Write queue drained", log.FieldOperation, log.OpShutdown)
}
