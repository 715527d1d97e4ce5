package asynclock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/em3ndez/go-airlock/v1/metrics"
)

var tracer = otel.Tracer("github.com/em3ndez/go-airlock/v1/asynclock")

// Locker is the capability surface shared by AsyncLock and Noop. Lock
// requests exclusive execution of fn and never blocks the caller: fn either
// runs synchronously on the calling goroutine, or is queued and runs later on
// the goroutine that releases the lock. Unlock releases a held lock; the
// caller must have completed a Lock and not yet unlocked, this is not
// enforced.
type Locker interface {
	Lock(fn func())
	Unlock()
}

// AsyncLock is a non-blocking, fair mutex. The zero value is unusable; use
// New.
type AsyncLock struct {
	// waitCount is incremented by each Lock and decremented by each Unlock.
	// The lock is free when the count is 0; a value above 1 means queued
	// waiters.
	waitCount atomic.Int64

	// waiters holds the continuations of Lock calls that found the lock
	// held. Unlock dequeues and runs the head.
	waiters waitQueue

	inlineCounter prometheus.Counter
	queuedCounter prometheus.Counter
	traceEnabled  bool
}

// Option configures an AsyncLock.
type Option func(*AsyncLock)

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(l *AsyncLock) {
		l.inlineCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airlock_lock_inline_total",
			Help: "Total number of lock acquisitions granted without queueing",
		})
		l.queuedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airlock_lock_queued_total",
			Help: "Total number of lock acquisitions that had to queue",
		})
		reg.MustRegister(l.inlineCounter, l.queuedCounter)
	}
}

// WithTracing enables OpenTelemetry tracing for lock acquisitions.
func WithTracing() Option {
	return func(l *AsyncLock) {
		l.traceEnabled = true
	}
}

// New creates a new AsyncLock.
func New(opts ...Option) *AsyncLock {
	l := &AsyncLock{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock requests exclusive execution of fn. If the lock is free it is
// acquired and fn runs immediately on the calling goroutine. Otherwise fn is
// enqueued and Lock returns; fn will run on the goroutine whose Unlock hands
// the lock over.
func (l *AsyncLock) Lock(fn func()) {
	metrics.LockCounter.Inc()
	if l.traceEnabled {
		_, span := tracer.Start(context.Background(), "AsyncLock.Lock")
		inner := fn
		fn = func() {
			defer span.End()
			inner()
		}
	}

	if l.waitCount.CompareAndSwap(0, 1) {
		if l.inlineCounter != nil {
			l.inlineCounter.Inc()
		}
		fn()
		return
	}

	// Enqueue first, then increment. An Unlock may have raced in between
	// the failed CAS and the enqueue; if the pre-increment count was 0 that
	// Unlock saw nothing to wake, so this call runs the head itself. The
	// enqueue-before-recheck order must not change.
	l.waiters.push(fn)
	metrics.WaiterGauge.Inc()
	if l.queuedCounter != nil {
		l.queuedCounter.Inc()
	}
	if l.waitCount.Add(1) == 1 {
		metrics.WaiterGauge.Dec()
		l.waiters.pop()()
	}
}

// Unlock releases the lock. If a waiter is queued, ownership transfers to it
// directly and its continuation runs inline on the calling goroutine, with no
// intervening unlocked state observable by other goroutines. A chain of
// waiters that unlock synchronously therefore recurses; callers queueing very
// long chains should be aware of the stack growth.
func (l *AsyncLock) Unlock() {
	if l.waitCount.Add(-1) != 0 {
		metrics.WaiterGauge.Dec()
		l.waiters.pop()()
	}
}

// waitQueue is a mutex-protected FIFO of pending continuations. Only the
// slow path touches it; the counter protocol in Lock/Unlock guarantees pop is
// never called on an empty queue.
type waitQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *waitQueue) push(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *waitQueue) pop() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fns) == 0 {
		panic("airlock: wait queue empty, unbalanced Unlock")
	}
	fn := q.fns[0]
	q.fns[0] = nil
	q.fns = q.fns[1:]
	return fn
}
