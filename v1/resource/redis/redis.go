// Package redis guards a Redis client the way airlock guards any resource
// that must see one call at a time: every command runs through a session
// lock, results come back as demand-driven streams, and command plans are
// cached so repeated command shapes skip normalization.
package redis

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/em3ndez/go-airlock/v1/asynclock"
	"github.com/em3ndez/go-airlock/v1/plancache"
	"github.com/em3ndez/go-airlock/v1/resource"
	"github.com/em3ndez/go-airlock/v1/stream"
)

// readOnlyCommands is the subset of command names the planner marks as not
// mutating the keyspace.
var readOnlyCommands = map[string]bool{
	"GET": true, "MGET": true, "EXISTS": true, "TTL": true, "TYPE": true,
	"STRLEN": true, "LLEN": true, "LRANGE": true, "SCARD": true,
	"SMEMBERS": true, "HGET": true, "HGETALL": true, "KEYS": true,
}

// handle adapts a Redis connection to resource.Handle. Commands are
// serialized: the executor treats the round trip of each command as an
// outstanding call.
type handle struct {
	addr string
}

func (h handle) ID() string                  { return h.addr }
func (h handle) RequiresSerialization() bool { return true }

// Executor issues Redis commands one at a time through an airlock session.
type Executor struct {
	client *redis.Client
	sess   *resource.Session
	plans  *plancache.Cache
}

// NewExecutor wraps client. Lock options apply to the session's AsyncLock;
// cache options to the plan cache.
func NewExecutor(client *redis.Client, lockOpts []asynclock.Option, cacheOpts ...plancache.Option) (*Executor, error) {
	sess, err := resource.NewSession(handle{addr: client.Options().Addr}, lockOpts...)
	if err != nil {
		return nil, err
	}
	return &Executor{
		client: client,
		sess:   sess,
		plans:  plancache.New(cacheOpts...),
	}, nil
}

// Session exposes the executor's session, mainly for composing guarded
// streams over the same lock.
func (e *Executor) Session() *resource.Session { return e.sess }

// Plan normalizes a command line into a cached plan.
func (e *Executor) Plan(text string) (plancache.Plan, error) {
	return e.plans.Lookup(text, func(text string) (plancache.Plan, error) {
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return plancache.Plan{}, fmt.Errorf("airlock/redis: empty command")
		}
		name := strings.ToUpper(fields[0])
		return plancache.Plan{
			Text:     text,
			Name:     name,
			ReadOnly: readOnlyCommands[name],
		}, nil
	})
}

// Do executes a command line such as "SET k v" and returns its reply as a
// single-value publisher. The session lock is held from subscription until
// the reply is delivered, so no second command can start while this one is
// in flight.
func (e *Executor) Do(ctx context.Context, text string) stream.Publisher[any] {
	return resource.Query(e.sess, func() (stream.Publisher[any], error) {
		plan, err := e.Plan(text)
		if err != nil {
			return nil, err
		}
		args := make([]any, 0, 4)
		for _, f := range strings.Fields(plan.Text) {
			args = append(args, f)
		}
		pipe := stream.NewPipe[any]()
		go func() {
			cmd := e.client.Do(ctx, args...)
			if err := cmd.Err(); err != nil {
				pipe.Error(err)
				return
			}
			pipe.Emit(cmd.Val())
			pipe.Close()
		}()
		return pipe, nil
	})
}

// Exec executes a command line for its side effect only. The returned
// channel resolves after the lock is released.
func (e *Executor) Exec(ctx context.Context, text string) <-chan error {
	return e.sess.Exec(func() error {
		plan, err := e.Plan(text)
		if err != nil {
			return err
		}
		args := make([]any, 0, 4)
		for _, f := range strings.Fields(plan.Text) {
			args = append(args, f)
		}
		return e.client.Do(ctx, args...).Err()
	})
}

// Close releases the plan cache. The Redis client is owned by the caller.
func (e *Executor) Close() {
	e.plans.Close()
}
