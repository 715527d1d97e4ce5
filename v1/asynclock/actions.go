package asynclock

import (
	"fmt"
	"sync/atomic"

	"github.com/em3ndez/go-airlock/v1/stream"
)

// Result carries the outcome of a Get action.
type Result[T any] struct {
	Value T
	Err   error
}

// Run executes action while holding l and reports its outcome on the
// returned channel. The lock is released exactly once, on both the success
// and the failure path, before the channel receives; a caller chaining a
// second acquisition off the channel never finds the lock still held. A
// panic inside action is recovered into an error.
func Run(l Locker, action func() error) <-chan error {
	done := make(chan error, 1)
	l.Lock(func() {
		err := recovered(action)
		l.Unlock()
		done <- err
	})
	return done
}

// Get executes supplier while holding l and reports the produced value or
// error on the returned channel, with the same release guarantees as Run.
func Get[T any](l Locker, supplier func() (T, error)) <-chan Result[T] {
	done := make(chan Result[T], 1)
	l.Lock(func() {
		var res Result[T]
		res.Err = recovered(func() error {
			var err error
			res.Value, err = supplier()
			return err
		})
		l.Unlock()
		done <- res
	})
	return done
}

// FlatMap executes supplier while holding l and flattens the publisher it
// produces. The lock stays held until the inner publisher's first signal, so
// a unit of work that spans lock acquisition plus one asynchronous call is
// covered end to end. On a supplier error or panic the lock is released and
// the returned publisher fails with that error.
func FlatMap[T any](l Locker, supplier func() (stream.Publisher[T], error)) stream.Publisher[T] {
	return stream.PublisherFunc[T](func(sub stream.Subscriber[T]) {
		l.Lock(func() {
			var p stream.Publisher[T]
			err := recovered(func() error {
				var err error
				p, err = supplier()
				return err
			})
			if err != nil {
				l.Unlock()
				stream.Fail[T](err).Subscribe(sub)
				return
			}
			p.Subscribe(&releasingSubscriber[T]{lock: l, downstream: sub})
		})
	})
}

// releasingSubscriber forwards every signal unchanged and releases the lock
// on the first one after OnSubscribe.
type releasingSubscriber[T any] struct {
	lock       Locker
	downstream stream.Subscriber[T]
	released   atomic.Bool
}

func (r *releasingSubscriber[T]) release() {
	if r.released.CompareAndSwap(false, true) {
		r.lock.Unlock()
	}
}

func (r *releasingSubscriber[T]) OnSubscribe(s stream.Subscription) {
	r.downstream.OnSubscribe(s)
}

func (r *releasingSubscriber[T]) OnNext(value T) {
	r.release()
	r.downstream.OnNext(value)
}

func (r *releasingSubscriber[T]) OnError(err error) {
	r.release()
	r.downstream.OnError(err)
}

func (r *releasingSubscriber[T]) OnComplete() {
	r.release()
	r.downstream.OnComplete()
}

func recovered(action func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("airlock: action panicked: %v", r)
		}
	}()
	return action()
}
