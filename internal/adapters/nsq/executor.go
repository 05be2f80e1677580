// Package nsq implements ports.Executor by publishing operations to NSQ.
// Each kind goes to its own topic so backend consumers can scale per kind.
package nsq

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nsqio/go-nsq"

	"github.com/bft-labs/courier/internal/codec"
	"github.com/bft-labs/courier/internal/domain"
)

// DefaultTopicPrefix is prepended to the kind to form the topic name.
const DefaultTopicPrefix = "courier."

var validTopic = regexp.MustCompile(`^[.a-zA-Z0-9_-]{1,64}$`)

// Publisher is the subset of *nsq.Producer the executor uses.
type Publisher interface {
	PublishAsync(topic string, body []byte, doneChan chan *nsq.ProducerTransaction, args ...interface{}) error
	Stop()
}

// Executor publishes the wire envelope of each operation and waits for
// nsqd to acknowledge it.
type Executor struct {
	producer    Publisher
	topicPrefix string
}

// NewExecutor connects a producer to the nsqd at addr.
func NewExecutor(addr, topicPrefix string) (*Executor, error) {
	p, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelWarning)
	return NewExecutorWithPublisher(p, topicPrefix), nil
}

// NewExecutorWithPublisher wraps an existing publisher. An empty prefix
// selects DefaultTopicPrefix.
func NewExecutorWithPublisher(p Publisher, topicPrefix string) *Executor {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Executor{producer: p, topicPrefix: topicPrefix}
}

// Topic returns the topic operations of kind are published to.
func (e *Executor) Topic(kind domain.Kind) string {
	return e.topicPrefix + kind.String()
}

// Execute implements ports.Executor. The publish is asynchronous on the
// wire so ctx can abandon the wait for the acknowledgement.
func (e *Executor) Execute(ctx context.Context, op domain.QueuedOperation) error {
	topic := e.Topic(op.Kind())
	if !validTopic.MatchString(topic) {
		return fmt.Errorf("invalid nsq topic %q", topic)
	}

	body, err := codec.EncodeOperation(op)
	if err != nil {
		return err
	}

	done := make(chan *nsq.ProducerTransaction, 1)
	if err := e.producer.PublishAsync(topic, body, done, op.ID); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	select {
	case t := <-done:
		if t.Error != nil {
			return fmt.Errorf("publish %s: %w", topic, t.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// Close stops the producer.
func (e *Executor) Close() {
	if e.producer != nil {
		e.producer.Stop()
	}
}
