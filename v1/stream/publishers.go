package stream

import (
	"math"
	"sync"

	"github.com/em3ndez/go-airlock/v1/errors"
)

// Just returns a publisher that emits the given values in order, honoring
// requested demand, and then completes.
func Just[T any](values ...T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		if len(values) == 0 {
			sub.OnSubscribe(noopSubscription{})
			sub.OnComplete()
			return
		}
		sub.OnSubscribe(&sliceSubscription[T]{sub: sub, values: values})
	})
}

// Empty returns a publisher that completes immediately without emitting.
func Empty[T any]() Publisher[T] {
	return Just[T]()
}

// Fail returns a publisher that signals err immediately after subscribing.
func Fail[T any](err error) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(noopSubscription{})
		sub.OnError(err)
	})
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

// sliceSubscription walks a fixed slice against requested demand. The
// emitting flag keeps delivery serial when Request is re-entered from OnNext.
type sliceSubscription[T any] struct {
	mu        sync.Mutex
	sub       Subscriber[T]
	values    []T
	index     int
	requested int64
	emitting  bool
	done      bool
}

func (s *sliceSubscription[T]) Request(n int64) {
	if n <= 0 {
		s.mu.Lock()
		done := s.done
		s.done = true
		s.mu.Unlock()
		if !done {
			s.sub.OnError(errors.ErrNonPositiveDemand)
		}
		return
	}
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if s.requested > math.MaxInt64-n {
		s.requested = math.MaxInt64
	} else {
		s.requested += n
	}
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()
	s.drain()
}

func (s *sliceSubscription[T]) Cancel() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

func (s *sliceSubscription[T]) drain() {
	for {
		s.mu.Lock()
		if s.done {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		if s.index == len(s.values) {
			s.done = true
			s.emitting = false
			s.mu.Unlock()
			s.sub.OnComplete()
			return
		}
		if s.requested == 0 {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		v := s.values[s.index]
		s.index++
		if s.requested != math.MaxInt64 {
			s.requested--
		}
		s.mu.Unlock()
		s.sub.OnNext(v)
	}
}
