package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/circuitbreaker"
)

const EventTypeHeader = "event_type"

type Publisher interface {
	Publish(ctx context.Context, event *OutboxEvent) error
	Close() error
}

// KafkaPublisher writes outbox events to a topic keyed by order id, so all events
// of one order land on the same partition in order.
type KafkaPublisher struct {
	writer  *kafka.Writer
	breaker *circuitbreaker.Breaker
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaPublisher(w)
}

func newKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("kafka-" + w.Topic)),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(event.EventType)},
		},
	}
	return p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher prints events instead of sending them. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event *OutboxEvent) error {
	var ev domain.Event
	if err := json.Unmarshal(event.Payload, &ev); err != nil {
		return fmt.Errorf("decode event %d: %w", event.ID, err)
	}
	log.Info().
		Int64("outbox_id", event.ID).
		Str("event_type", event.EventType).
		Str("order_id", event.AggregateID).
		Msg(Describe(ev))
	return nil
}

func (LogPublisher) Close() error { return nil }

// Describe renders the notification text sent to the buyer for an event.
func Describe(ev domain.Event) string {
	switch ev.Type {
	case domain.EventOrderCreated:
		return fmt.Sprintf("order %s accepted, status %s", ev.OrderID, ev.OrderStatus)
	case domain.EventSubOrderStatusChanged:
		return fmt.Sprintf("order %s: supplier %s moved its part from %s to %s, order status %s",
			ev.OrderID, ev.SupplierID, ev.OldStatus, ev.NewStatus, ev.OrderStatus)
	default:
		return fmt.Sprintf("order %s: %s", ev.OrderID, ev.Type)
	}
}
