package stream

import (
	"context"
	"math"
)

type collector[T any] struct {
	demand int64
	values chan T
	donec  chan error
	subc   chan Subscription
	stop   chan struct{}
}

func (c *collector[T]) OnSubscribe(s Subscription) {
	c.subc <- s
	s.Request(c.demand)
}

func (c *collector[T]) OnNext(value T) {
	select {
	case c.values <- value:
	case <-c.stop:
	}
}

func (c *collector[T]) OnError(err error) { c.donec <- err }
func (c *collector[T]) OnComplete()       { c.donec <- nil }

// Collect subscribes with unbounded demand and gathers every value until the
// publisher terminates or ctx is done. On context cancellation the
// subscription is cancelled and ctx.Err() returned along with the values
// gathered so far.
func Collect[T any](ctx context.Context, p Publisher[T]) ([]T, error) {
	return collect[T](ctx, p, math.MaxInt64, -1)
}

// First subscribes with a demand of one and returns the first value. A
// publisher that completes without emitting yields the zero value and a nil
// error alongside found=false semantics folded into err == nil; callers that
// must distinguish use Collect.
func First[T any](ctx context.Context, p Publisher[T]) (T, error) {
	values, err := collect[T](ctx, p, 1, 1)
	var zero T
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, nil
	}
	return values[0], nil
}

func collect[T any](ctx context.Context, p Publisher[T], demand int64, limit int) ([]T, error) {
	c := &collector[T]{
		demand: demand,
		values: make(chan T),
		donec:  make(chan error, 1),
		subc:   make(chan Subscription, 1),
		stop:   make(chan struct{}),
	}
	go p.Subscribe(c)
	sub := <-c.subc

	var out []T
	for {
		select {
		case v := <-c.values:
			out = append(out, v)
			if limit > 0 && len(out) == limit {
				close(c.stop)
				sub.Cancel()
				return out, nil
			}
		case err := <-c.donec:
			close(c.stop)
			return out, err
		case <-ctx.Done():
			close(c.stop)
			sub.Cancel()
			return out, ctx.Err()
		}
	}
}
