// Package asynclock serializes access to a resource whose asynchronous API
// blocks the calling thread while a call is in flight, such as a database
// driver that locks its connection for the duration of each round trip. On a
// bounded worker pool two overlapping calls against such a resource can
// deadlock: the second caller blocks the only thread that could have
// completed the first call.
//
// [AsyncLock] avoids that by never blocking. A goroutine that cannot acquire
// the lock enqueues a continuation and returns; the continuation runs later,
// inline on whichever goroutine releases the lock. Waiters are served in
// strict FIFO order.
//
// [Noop] is a drop-in for resources that do not need serialization. Pick the
// implementation at construction and program against [Locker]; the derived
// forms [Run], [Get], [FlatMap] and [Wrap] work with either.
//
// [Wrap] guards a backpressure-driven publisher: the lock is held from the
// moment demand is requested until the matching deliveries arrive, which is
// exactly the window in which a resource call may be outstanding.
package asynclock
