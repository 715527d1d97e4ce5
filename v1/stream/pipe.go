package stream

import (
	"math"
	"sync"

	"github.com/em3ndez/go-airlock/v1/errors"
)

// Pipe is a unicast publisher fed imperatively by a producer goroutine. It
// buffers emitted values until the subscriber requests them, so a broker
// callback or channel reader can push into it without knowing about demand.
//
// A Pipe accepts exactly one subscriber. Emit, Close and Error may be called
// from any goroutine; signals reach the subscriber serially.
type Pipe[T any] struct {
	mu         sync.Mutex
	sub        Subscriber[T]
	subscribed bool
	buffer     []T
	requested  int64
	emitting   bool
	done       bool
	closed     bool
	err        error
}

// NewPipe returns an empty, unsubscribed pipe.
func NewPipe[T any]() *Pipe[T] {
	return &Pipe[T]{}
}

// Subscribe implements Publisher. A second subscriber is rejected with
// errors.ErrAlreadySubscribed.
func (p *Pipe[T]) Subscribe(sub Subscriber[T]) {
	p.mu.Lock()
	if p.subscribed {
		p.mu.Unlock()
		sub.OnSubscribe(noopSubscription{})
		sub.OnError(errors.ErrAlreadySubscribed)
		return
	}
	p.subscribed = true
	p.sub = sub
	p.mu.Unlock()
	sub.OnSubscribe((*pipeSubscription[T])(p))
	// A producer that already closed an empty pipe owes the subscriber its
	// terminal signal.
	p.drain()
}

// Emit hands a value to the subscriber, buffering it if there is no
// outstanding demand yet. It reports false once the pipe is closed,
// cancelled or terminated, in which case the value is dropped.
func (p *Pipe[T]) Emit(value T) bool {
	p.mu.Lock()
	if p.done || p.closed {
		p.mu.Unlock()
		return false
	}
	p.buffer = append(p.buffer, value)
	p.mu.Unlock()
	p.drain()
	return true
}

// Close completes the pipe: once buffered values are drained the subscriber
// receives OnComplete.
func (p *Pipe[T]) Close() {
	p.terminate(nil)
}

// Error fails the pipe: once buffered values are drained the subscriber
// receives OnError(err).
func (p *Pipe[T]) Error(err error) {
	p.terminate(err)
}

func (p *Pipe[T]) terminate(err error) {
	p.mu.Lock()
	if p.done || p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.err = err
	p.mu.Unlock()
	p.drain()
}

// drain delivers buffered values against demand, then the terminal signal if
// the producer side is closed. The emitting flag keeps a single goroutine in
// the delivery loop at a time.
func (p *Pipe[T]) drain() {
	p.mu.Lock()
	if p.emitting || p.done || p.sub == nil {
		p.mu.Unlock()
		return
	}
	p.emitting = true
	for {
		if len(p.buffer) > 0 && p.requested > 0 {
			v := p.buffer[0]
			p.buffer = p.buffer[1:]
			if p.requested != math.MaxInt64 {
				p.requested--
			}
			sub := p.sub
			p.mu.Unlock()
			sub.OnNext(v)
			p.mu.Lock()
			if p.done {
				break
			}
			continue
		}
		if p.closed && len(p.buffer) == 0 {
			p.done = true
			sub := p.sub
			err := p.err
			p.mu.Unlock()
			if err != nil {
				sub.OnError(err)
			} else {
				sub.OnComplete()
			}
			p.mu.Lock()
			break
		}
		break
	}
	p.emitting = false
	p.mu.Unlock()
}

// pipeSubscription exposes the subscriber-facing half of a Pipe.
type pipeSubscription[T any] Pipe[T]

func (s *pipeSubscription[T]) Request(n int64) {
	p := (*Pipe[T])(s)
	if n <= 0 {
		p.mu.Lock()
		done := p.done
		p.done = true
		sub := p.sub
		p.mu.Unlock()
		if !done {
			sub.OnError(errors.ErrNonPositiveDemand)
		}
		return
	}
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	if p.requested > math.MaxInt64-n {
		p.requested = math.MaxInt64
	} else {
		p.requested += n
	}
	p.mu.Unlock()
	p.drain()
}

func (s *pipeSubscription[T]) Cancel() {
	p := (*Pipe[T])(s)
	p.mu.Lock()
	p.done = true
	p.buffer = nil
	p.mu.Unlock()
}
