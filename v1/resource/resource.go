// Package resource binds protected resources to their locking strategy.
// A resource handle declares whether its asynchronous API blocks callers
// while a call is in flight; sessions pick the matching asynclock
// implementation at construction and expose the derived action forms so
// callers never pair lock and unlock by hand.
package resource

import (
	uuid "github.com/hashicorp/go-uuid"

	"github.com/em3ndez/go-airlock/v1/asynclock"
	"github.com/em3ndez/go-airlock/v1/stream"
)

// Handle is what the lock layer needs to know about a protected resource.
type Handle interface {
	// ID identifies the underlying resource instance, for logs and traces.
	ID() string
	// RequiresSerialization reports whether the resource blocks a calling
	// thread when a second call is issued while one is outstanding. When
	// false the no-op strategy is used and calls pass straight through.
	RequiresSerialization() bool
}

// LockerFor picks the locking strategy for h: an AsyncLock when the handle
// requires serialization, the no-op lock otherwise.
func LockerFor(h Handle, opts ...asynclock.Option) asynclock.Locker {
	if h.RequiresSerialization() {
		return asynclock.New(opts...)
	}
	return asynclock.NewNoop()
}

// Session pairs a handle with the locker guarding it. One session per
// resource handle; the session lives as long as the handle does.
type Session struct {
	id     string
	handle Handle
	lock   asynclock.Locker
}

// NewSession creates a session for h, selecting the locking strategy from
// the handle's capability.
func NewSession(h Handle, opts ...asynclock.Option) (*Session, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, handle: h, lock: LockerFor(h, opts...)}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Handle returns the guarded resource handle.
func (s *Session) Handle() Handle { return s.handle }

// Locker returns the session's locking strategy.
func (s *Session) Locker() asynclock.Locker { return s.lock }

// Exec runs action serialized against the session's resource and reports the
// outcome on the returned channel once the lock is released.
func (s *Session) Exec(action func() error) <-chan error {
	return asynclock.Run(s.lock, action)
}

// Fetch runs supplier serialized against the session's resource and reports
// the produced value on the returned channel once the lock is released.
func Fetch[T any](s *Session, supplier func() (T, error)) <-chan asynclock.Result[T] {
	return asynclock.Get(s.lock, supplier)
}

// Query runs supplier under the session's lock and flattens the publisher it
// produces; the lock is held until the publisher's first signal.
func Query[T any](s *Session, supplier func() (stream.Publisher[T], error)) stream.Publisher[T] {
	return asynclock.FlatMap(s.lock, supplier)
}

// Stream wraps p so every protocol transition on it is serialized against
// the session's resource.
func Stream[T any](s *Session, p stream.Publisher[T]) stream.Publisher[T] {
	return asynclock.Wrap(s.lock, p)
}
