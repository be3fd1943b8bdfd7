// Package notify delivers domain events to the notification side. Dispatch never fails the caller:
// events go to a durable outbox and a poller forwards them to the broker. Events that never
// reached the outbox are found through the Ledger and emitted again by Recover.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.Event)
}

type DispatcherFunc func(ctx context.Context, event domain.Event)

func (f DispatcherFunc) Dispatch(ctx context.Context, event domain.Event) {
	f(ctx, event)
}

// Ledger records which order changes already have their event in the outbox.
// order.Repository implements it.
type Ledger interface {
	MarkOrderAnnounced(ctx context.Context, orderID uuid.UUID) error
	MarkStatusAnnounced(ctx context.Context, subOrderID uuid.UUID, status domain.Status) error
	ListUnannounced(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error)
}

type OutboxDispatcher struct {
	outbox Outbox
	ledger Ledger
}

// NewOutboxDispatcher returns a dispatcher that marks delivered events in ledger.
// A nil ledger disables Recover.
func NewOutboxDispatcher(outbox Outbox, ledger Ledger) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: outbox, ledger: ledger}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, event domain.Event) {
	if err := d.announce(context.WithoutCancel(ctx), event); err != nil {
		logger.FromContext(ctx).Error().Err(err).
			Str("event_type", string(event.Type)).
			Str("order_id", event.OrderID.String()).
			Msg("failed to enqueue event, left for recovery")
	}
}

// Recover emits again the events of changes made before the given time that never reached
// the outbox, and returns how many it emitted. Only the latest transition of a sub-order
// is recovered.
func (d *OutboxDispatcher) Recover(ctx context.Context, before time.Time, limit int) (int, error) {
	if d.ledger == nil {
		return 0, nil
	}
	orders, err := d.ledger.ListUnannounced(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("list unannounced orders: %w", err)
	}

	recovered := 0
	for _, o := range orders {
		var events []domain.Event
		if !o.Announced && o.CreatedAt.Before(before) {
			events = append(events, domain.NewOrderCreated(o))
		}
		for i := range o.SubOrders {
			sub := &o.SubOrders[i]
			if sub.Unannounced() && sub.UpdatedAt.Before(before) {
				events = append(events, domain.NewSubOrderStatusChanged(sub, sub.PreviousStatus, o.Status()))
			}
		}

		for _, event := range events {
			if err := d.announce(ctx, event); err != nil {
				return recovered, fmt.Errorf("recover %s of order %s: %w", event.Type, o.ID, err)
			}
			recovered++
		}
	}
	return recovered, nil
}

// announce enqueues the event and then marks it in the ledger. A failed mark only means
// the event may be emitted twice.
func (d *OutboxDispatcher) announce(ctx context.Context, event domain.Event) error {
	if err := d.outbox.Enqueue(ctx, event); err != nil {
		return err
	}
	if d.ledger == nil {
		return nil
	}

	var err error
	switch event.Type {
	case domain.EventOrderCreated:
		err = d.ledger.MarkOrderAnnounced(ctx, event.OrderID)
	case domain.EventSubOrderStatusChanged:
		err = d.ledger.MarkStatusAnnounced(ctx, event.SubOrderID, event.NewStatus)
	}
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("event_type", string(event.Type)).
			Str("order_id", event.OrderID.String()).
			Msg("failed to mark event as announced")
	}
	return nil
}
