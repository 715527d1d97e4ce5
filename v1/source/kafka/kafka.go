// Package kafka adapts a Kafka partition to the airlock stream contract via
// IBM/sarama, mirroring the NATS source: messages flow into a pipe and reach
// the subscriber only against requested demand.
package kafka

import (
	sarama "github.com/IBM/sarama"

	"github.com/em3ndez/go-airlock/v1/stream"
)

// Source publishes the messages of one topic partition. Each subscriber
// gets its own PartitionConsumer, created at subscribe time and closed on
// cancel or terminal.
type Source struct {
	consumer  sarama.Consumer
	topic     string
	partition int32
	offset    int64
}

// New returns a source reading topic/partition from offset (for example
// sarama.OffsetNewest).
func New(consumer sarama.Consumer, topic string, partition int32, offset int64) *Source {
	return &Source{consumer: consumer, topic: topic, partition: partition, offset: offset}
}

// Subscribe implements stream.Publisher.
func (s *Source) Subscribe(sub stream.Subscriber[*sarama.ConsumerMessage]) {
	pc, err := s.consumer.ConsumePartition(s.topic, s.partition, s.offset)
	if err != nil {
		stream.Fail[*sarama.ConsumerMessage](err).Subscribe(sub)
		return
	}

	pipe := stream.NewPipe[*sarama.ConsumerMessage]()
	go func() {
		for msg := range pc.Messages() {
			if !pipe.Emit(msg) {
				return
			}
		}
		pipe.Close()
	}()
	go func() {
		for err := range pc.Errors() {
			pipe.Error(err)
		}
	}()

	pipe.Subscribe(&teardownSubscriber{downstream: sub, pc: pc})
}

// teardownSubscriber forwards signals and closes the partition consumer once
// the downstream cancels or the stream terminates.
type teardownSubscriber struct {
	downstream stream.Subscriber[*sarama.ConsumerMessage]
	pc         sarama.PartitionConsumer
}

func (t *teardownSubscriber) OnSubscribe(s stream.Subscription) {
	t.downstream.OnSubscribe(&teardownSubscription{Subscription: s, pc: t.pc})
}

func (t *teardownSubscriber) OnNext(msg *sarama.ConsumerMessage) { t.downstream.OnNext(msg) }

func (t *teardownSubscriber) OnError(err error) {
	t.pc.AsyncClose()
	t.downstream.OnError(err)
}

func (t *teardownSubscriber) OnComplete() {
	t.pc.AsyncClose()
	t.downstream.OnComplete()
}

type teardownSubscription struct {
	stream.Subscription
	pc sarama.PartitionConsumer
}

func (t *teardownSubscription) Cancel() {
	t.pc.AsyncClose()
	t.Subscription.Cancel()
}
