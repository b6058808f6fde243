package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits task change events. It satisfies the orchestrator's
// scheduler signal.
type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

// Signal publishes a tasks_changed event keyed by the task id, retrying
// briefly on broker errors.
func (p *Publisher) Signal(ctx context.Context, aoiID string) error {
	payload, err := json.Marshal(Event{Type: EventTasksChanged, AOIID: aoiID, At: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafkago.Message{Key: []byte(aoiID), Value: payload}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, policy); err != nil {
		return fmt.Errorf("publish %s event: %w", EventTasksChanged, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
