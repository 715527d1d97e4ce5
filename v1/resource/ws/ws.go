// Package ws guards a gorilla/websocket connection. The websocket package
// supports one concurrent writer per connection, which makes a connection a
// textbook airlock resource: writes are serialized through a session lock
// and inbound messages are exposed as a guarded, demand-driven stream.
package ws

import (
	"github.com/gorilla/websocket"

	"github.com/em3ndez/go-airlock/v1/asynclock"
	"github.com/em3ndez/go-airlock/v1/resource"
	"github.com/em3ndez/go-airlock/v1/stream"
)

type handle struct {
	remote string
}

func (h handle) ID() string                  { return h.remote }
func (h handle) RequiresSerialization() bool { return true }

// Conn wraps a websocket connection behind an airlock session.
type Conn struct {
	conn *websocket.Conn
	sess *resource.Session
}

// Wrap takes ownership of conn's write side. The caller must stop writing to
// conn directly.
func Wrap(conn *websocket.Conn, opts ...asynclock.Option) (*Conn, error) {
	sess, err := resource.NewSession(handle{remote: conn.RemoteAddr().String()}, opts...)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, sess: sess}, nil
}

// Session exposes the underlying session for composing guarded streams over
// the same lock.
func (c *Conn) Session() *resource.Session { return c.sess }

// Send writes one message, serialized against every other operation on this
// connection. The returned channel resolves after the lock is released.
func (c *Conn) Send(messageType int, data []byte) <-chan error {
	return c.sess.Exec(func() error {
		return c.conn.WriteMessage(messageType, data)
	})
}

// Messages reads inbound messages into a guarded publisher. Reading starts
// at subscribe time; the stream terminates with the read error when the
// connection closes. Each delivery holds the session lock from the request
// that asked for it until the message arrives, so writes never interleave
// with an outstanding read delivery.
func (c *Conn) Messages() stream.Publisher[[]byte] {
	pipe := stream.NewPipe[[]byte]()
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				pipe.Error(err)
				return
			}
			if !pipe.Emit(data) {
				return
			}
		}
	}()
	return resource.Stream[[]byte](c.sess, pipe)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
