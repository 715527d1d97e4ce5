package asynclock

// Noop implements Locker for resources that complete asynchronous calls
// without blocking callers. Lock runs fn immediately and Unlock does
// nothing, so the derived forms keep their error and completion semantics
// while skipping serialization entirely.
type Noop struct{}

// NewNoop returns the no-op lock.
func NewNoop() *Noop {
	return &Noop{}
}

// Lock runs fn synchronously.
func (*Noop) Lock(fn func()) { fn() }

// Unlock does nothing.
func (*Noop) Unlock() {}
