package nats

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	nats "github.com/nats-io/nats.go"

	"github.com/em3ndez/go-airlock/v1/asynclock"
	"github.com/em3ndez/go-airlock/v1/stream"
)

func newConn(t *testing.T) *nats.Conn {
	t.Helper()
	addr := os.Getenv("AIRLOCK_TEST_NATS_ADDR")

	var conn *nats.Conn
	var s *server.Server
	var err error

	if addr != "" {
		t.Logf("using real NATS at %s", addr)
		conn, err = nats.Connect(addr)
	} else {
		t.Log("using embedded NATS server")
		s = natsserver.RunRandClientPortServer()
		conn, err = nats.Connect(s.ClientURL())
	}
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if s != nil {
			s.Shutdown()
		}
	})
	return conn
}

type gatherSubscriber struct {
	sub    chan stream.Subscription
	recv   chan []byte
	failed chan error
}

func newGatherSubscriber() *gatherSubscriber {
	return &gatherSubscriber{
		sub:    make(chan stream.Subscription, 1),
		recv:   make(chan []byte, 64),
		failed: make(chan error, 1),
	}
}

func (g *gatherSubscriber) OnSubscribe(s stream.Subscription) { g.sub <- s }
func (g *gatherSubscriber) OnNext(data []byte)                { g.recv <- data }
func (g *gatherSubscriber) OnError(err error)                 { g.failed <- err }
func (g *gatherSubscriber) OnComplete()                       { close(g.recv) }

func TestSourceDeliversAgainstDemand(t *testing.T) {
	conn := newConn(t)
	subject := "airlock." + uuid.NewString()

	g := newGatherSubscriber()
	New(conn, subject).Subscribe(g)
	sub := <-g.sub

	for i := 0; i < 3; i++ {
		if err := conn.Publish(subject, []byte{byte('a' + i)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case data := <-g.recv:
		t.Fatalf("message %q delivered without demand", data)
	case <-time.After(100 * time.Millisecond):
	}

	sub.Request(2)
	for i := 0; i < 2; i++ {
		select {
		case <-g.recv:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}
	select {
	case data := <-g.recv:
		t.Fatalf("message %q exceeded requested demand", data)
	case <-time.After(100 * time.Millisecond):
	}
	sub.Cancel()
}

func TestSourceBehindGuard(t *testing.T) {
	conn := newConn(t)
	subject := "airlock." + uuid.NewString()

	l := asynclock.New()
	g := newGatherSubscriber()
	asynclock.Wrap[[]byte](l, New(conn, subject)).Subscribe(g)
	sub := <-g.sub

	sub.Request(1)
	if err := conn.Publish(subject, []byte("payload")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	select {
	case data := <-g.recv:
		if string(data) != "payload" {
			t.Fatalf("unexpected payload %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for guarded delivery")
	}

	// Demand drained, so a new action on the same lock must run immediately.
	done := make(chan struct{})
	l.Lock(func() {
		close(done)
		l.Unlock()
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock still held after guarded delivery drained demand")
	}
}
