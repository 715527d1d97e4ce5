// Package nats adapts a NATS subject to the airlock stream contract, so a
// broker feed can be guarded by a session lock like any other publisher.
package nats

import (
	nats "github.com/nats-io/nats.go"

	"github.com/em3ndez/go-airlock/v1/stream"
)

// Source is a publisher of the payloads arriving on one subject. Each
// subscriber gets its own NATS subscription, created at subscribe time and
// torn down on cancel or terminal.
type Source struct {
	conn    *nats.Conn
	subject string
}

// New returns a source for subject on conn.
func New(conn *nats.Conn, subject string) *Source {
	return &Source{conn: conn, subject: subject}
}

// Subscribe implements stream.Publisher. Messages are buffered by the pipe
// and delivered only against requested demand.
func (s *Source) Subscribe(sub stream.Subscriber[[]byte]) {
	pipe := stream.NewPipe[[]byte]()
	natsSub, err := s.conn.Subscribe(s.subject, func(m *nats.Msg) {
		pipe.Emit(m.Data)
	})
	if err != nil {
		stream.Fail[[]byte](err).Subscribe(sub)
		return
	}
	pipe.Subscribe(&teardownSubscriber{downstream: sub, natsSub: natsSub})
}

// teardownSubscriber forwards signals and unsubscribes from NATS once the
// downstream cancels or the stream terminates.
type teardownSubscriber struct {
	downstream stream.Subscriber[[]byte]
	natsSub    *nats.Subscription
}

func (t *teardownSubscriber) OnSubscribe(s stream.Subscription) {
	t.downstream.OnSubscribe(&teardownSubscription{Subscription: s, natsSub: t.natsSub})
}

func (t *teardownSubscriber) OnNext(data []byte) { t.downstream.OnNext(data) }

func (t *teardownSubscriber) OnError(err error) {
	_ = t.natsSub.Unsubscribe()
	t.downstream.OnError(err)
}

func (t *teardownSubscriber) OnComplete() {
	_ = t.natsSub.Unsubscribe()
	t.downstream.OnComplete()
}

type teardownSubscription struct {
	stream.Subscription
	natsSub *nats.Subscription
}

func (t *teardownSubscription) Cancel() {
	_ = t.natsSub.Unsubscribe()
	t.Subscription.Cancel()
}
