package stream

// Subscription is the control surface a Publisher hands to its Subscriber.
// Request and Cancel may be invoked from any goroutine, including from
// within the subscriber's own signal handlers.
type Subscription interface {
	// Request asks the publisher for n more values. n must be positive.
	Request(n int64)
	// Cancel asks the publisher to stop emitting. Values already in flight
	// may still be delivered.
	Cancel()
}

// Subscriber receives the signals of one subscription. Implementations may
// assume signals arrive serially.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// Publisher emits a sequence of values to a Subscriber, honoring the demand
// the subscriber requests.
type Publisher[T any] interface {
	Subscribe(sub Subscriber[T])
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc[T any] func(sub Subscriber[T])

// Subscribe implements Publisher.
func (f PublisherFunc[T]) Subscribe(sub Subscriber[T]) { f(sub) }
