package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// Delay before fetching again after the broker failed, doubled on every further failure.
const (
	fetchBackoffMin = 100 * time.Millisecond
	fetchBackoffMax = 5 * time.Second
)

type Handler func(ctx context.Context, event domain.Event) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	handle     Handler
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(topic, groupID string, handle Handler, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, handle)
}

func newConsumer(reader messageReader, handle Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		handle:     handle,
		minBackoff: fetchBackoffMin,
		maxBackoff: fetchBackoffMax,
	}
}

// Run consumes until ctx is done. Fetch failures are retried with exponential backoff.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.minBackoff
	for ctx.Err() == nil {
		if err := c.processMessage(ctx); err == nil {
			backoff = c.minBackoff
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(2*backoff, c.maxBackoff)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// processMessage commits every message it has seen. Notifications are best effort,
// a message that cannot be decoded or handled is logged and skipped. Only a failed
// fetch is returned.
func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		log.Error().Err(err).Msg("error reading message")
		return err
	}

	var event domain.Event
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("error parsing message")
	} else if err := c.handle(ctx, event); err != nil {
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to handle event")
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("failed to commit message")
	}
	return nil
}

// LogNotification writes the buyer notification to the log.
func LogNotification(_ context.Context, event domain.Event) error {
	log.Info().
		Str("buyer_id", event.BuyerID).
		Str("event_type", string(event.Type)).
		Str("order_id", event.OrderID.String()).
		Msg(Describe(event))
	return nil
}
