package asynclock

import (
	"math"
	"sync/atomic"

	"github.com/em3ndez/go-airlock/v1/metrics"
	"github.com/em3ndez/go-airlock/v1/stream"
)

// Sentinel demand values. Once demand goes negative it never becomes
// non-negative again.
const (
	// cancelPending: downstream cancelled while a delivery was outstanding;
	// the cancel is forwarded upstream when that delivery resolves.
	cancelPending int64 = -1
	// terminated: no further lock acquisition will occur.
	terminated int64 = -2
)

// Wrap returns a publisher whose protocol transitions are serialized against
// l. A resource call is presumed outstanding from the moment a request is
// sent upstream until the matching deliveries arrive, so the guard holds the
// lock for exactly that span: no second call can start on another goroutine
// while the first is unresolved. The lock is also held across subscribe,
// since an on-subscribe signal is pending until the upstream acknowledges.
//
// Each subscription to the returned publisher gets its own guard; a guard
// serves one downstream subscriber for its lifetime.
func Wrap[T any](l Locker, p stream.Publisher[T]) stream.Publisher[T] {
	return stream.PublisherFunc[T](func(sub stream.Subscriber[T]) {
		l.Lock(func() {
			p.Subscribe(&guardSubscriber[T]{lock: l, downstream: sub})
		})
	})
}

// guardSubscriber proxies both ends of the protocol: it subscribes to the
// upstream publisher and acts as the subscription handed downstream. demand
// counts requested-but-undelivered values while non-negative; the sentinels
// above encode the two terminal-ish states.
type guardSubscriber[T any] struct {
	lock       Locker
	downstream stream.Subscriber[T]
	upstream   stream.Subscription
	demand     atomic.Int64
}

// OnSubscribe releases the lock acquired by Wrap before subscribing, binds
// the upstream subscription and passes itself downstream as the control
// surface.
func (g *guardSubscriber[T]) OnSubscribe(s stream.Subscription) {
	g.lock.Unlock()
	g.upstream = s
	g.downstream.OnSubscribe(g)
}

// Request acquires the lock before signalling request upstream, because
// raising demand from zero may initiate a resource call. If demand was
// already positive the lock is held from the earlier request and is simply
// kept. If demand is a sentinel the subscription is done and no future
// signal would ever release the lock, so it is released here and nothing is
// forwarded.
func (g *guardSubscriber[T]) Request(n int64) {
	g.lock.Lock(func() {
		prev := g.demand.Load()
		if n > 0 {
			prev = g.addDemand(n)
		}
		if prev >= 0 {
			g.upstream.Request(n)
			return // lock stays held until demand drains
		}
		g.lock.Unlock()
	})
}

// OnNext decrements demand and releases the lock once it reaches zero. A
// pending cancel is completed here instead: the lock is released, the cancel
// goes upstream, and the value is dropped rather than forwarded.
func (g *guardSubscriber[T]) OnNext(value T) {
	prev := g.decDemand()
	switch {
	case prev == cancelPending:
		g.lock.Unlock()
		metrics.DroppedValueCounter.Inc()
		metrics.GuardCancelCounter.Inc()
		g.upstream.Cancel()
	case prev > 0:
		if prev == 1 {
			g.lock.Unlock()
		}
		g.downstream.OnNext(value)
	default:
		// Already terminated: nothing goes downstream.
	}
}

// Cancel forwards upstream immediately only when no delivery is outstanding.
// Otherwise the cancel is deferred to the OnNext that resolves the
// outstanding delivery, so the in-flight resource call is never abandoned
// mid-flight.
func (g *guardSubscriber[T]) Cancel() {
	prev := g.updateDemand(func(cur int64) int64 {
		if cur > 0 || cur == cancelPending {
			return cancelPending
		}
		return terminated
	})
	if prev == 0 {
		metrics.GuardCancelCounter.Inc()
		g.upstream.Cancel()
	}
}

func (g *guardSubscriber[T]) OnError(err error) {
	g.terminate()
	g.downstream.OnError(err)
}

func (g *guardSubscriber[T]) OnComplete() {
	g.terminate()
	g.downstream.OnComplete()
}

// terminate releases the lock if it was held for outstanding demand or a
// pending cancel, and pins demand so no future request acquires it again.
// The terminal signal itself is forwarded unconditionally by the caller.
func (g *guardSubscriber[T]) terminate() {
	prev := g.demand.Swap(terminated)
	if prev > 0 || prev == cancelPending {
		g.lock.Unlock()
	}
}

// addDemand adds n to a non-negative demand, saturating at MaxInt64;
// sentinels are left unchanged. Returns the previous value.
func (g *guardSubscriber[T]) addDemand(n int64) int64 {
	return g.updateDemand(func(cur int64) int64 {
		if cur < 0 {
			return cur
		}
		if math.MaxInt64-cur < n {
			return math.MaxInt64
		}
		return cur + n
	})
}

// decDemand decrements demand by one, except that unbounded demand stays
// unbounded, a pending cancel becomes terminated, and terminated stays
// terminated. Returns the previous value.
func (g *guardSubscriber[T]) decDemand() int64 {
	return g.updateDemand(func(cur int64) int64 {
		switch {
		case cur == math.MaxInt64:
			return cur
		case cur == cancelPending:
			return terminated
		case cur <= terminated:
			return terminated
		default:
			return cur - 1
		}
	})
}

func (g *guardSubscriber[T]) updateDemand(f func(int64) int64) int64 {
	for {
		cur := g.demand.Load()
		if g.demand.CompareAndSwap(cur, f(cur)) {
			return cur
		}
	}
}
