package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type signaler interface {
	Signal(ctx context.Context, aoiID string) error
}

// Consumer turns task change events into scheduler wake-ups.
type Consumer struct {
	reader messageReader
	target signaler
}

func NewConsumer(brokers []string, topic, groupID string, target signaler) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		target: target,
	}
}

// Run consumes until ctx is canceled. Malformed messages are committed and
// skipped so they do not block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Error("failed to commit message", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		slog.Error("unmarshal event failed", "offset", msg.Offset, "error", err)
		return
	}
	if ev.Type != EventTasksChanged {
		slog.Debug("ignoring event", "type", ev.Type)
		return
	}
	if err := c.target.Signal(ctx, ev.AOIID); err != nil {
		slog.Error("failed to wake scheduler", "aoi_id", ev.AOIID, "error", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
