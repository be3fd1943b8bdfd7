// Package status moves sub-orders through their lifecycle and reports the derived order status.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/metrics"
	"github.com/tamoykinden/Final-project-auto-purch/internal/notify"
	"github.com/tamoykinden/Final-project-auto-purch/internal/order"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

// maxAttempts bounds the compare-and-set retries of one transition.
const maxAttempts = 5

type Stock interface {
	RestoreStock(ctx context.Context, lines []domain.StockLine) error
}

type Tracker struct {
	orders     order.Repository
	stock      Stock
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func NewTracker(orders order.Repository, stock Stock, dispatcher notify.Dispatcher, m *metrics.Metrics) *Tracker {
	return &Tracker{
		orders:     orders,
		stock:      stock,
		dispatcher: dispatcher,
		metrics:    m,
		tracer:     otel.Tracer("github.com/tamoykinden/Final-project-auto-purch/internal/status"),
	}
}

// Transition moves a sub-order to next. Illegal moves fail with domain.ErrInvalidTransition
// and leave the sub-order untouched.
func (t *Tracker) Transition(ctx context.Context, subOrderID uuid.UUID, next domain.Status) (*domain.SubOrder, error) {
	return t.transition(ctx, subOrderID, next, nil)
}

// TransitionBySupplier is Transition for the supplier that owns the sub-order.
func (t *Tracker) TransitionBySupplier(ctx context.Context, supplierID string, subOrderID uuid.UUID, next domain.Status) (*domain.SubOrder, error) {
	return t.transition(ctx, subOrderID, next, func(sub *domain.SubOrder) error {
		if sub.SupplierID != supplierID {
			return domain.ErrForbidden
		}
		return nil
	})
}

// Cancel cancels one sub-order on behalf of the buyer who placed it.
func (t *Tracker) Cancel(ctx context.Context, buyerID string, subOrderID uuid.UUID) (*domain.SubOrder, error) {
	return t.transition(ctx, subOrderID, domain.StatusCancelled, func(sub *domain.SubOrder) error {
		if sub.BuyerID != buyerID {
			return domain.ErrForbidden
		}
		return nil
	})
}

// CancelOrder cancels every sub-order that can still be cancelled. Sub-orders that already
// shipped keep going; the call fails only when nothing could be cancelled.
func (t *Tracker) CancelOrder(ctx context.Context, buyerID string, orderID uuid.UUID) (*domain.Order, error) {
	o, err := t.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}

	cancelled := 0
	for _, sub := range o.SubOrders {
		if !domain.CanTransitionTo(sub.Status, domain.StatusCancelled) {
			continue
		}
		_, err := t.transition(ctx, sub.ID, domain.StatusCancelled, nil)
		if errors.Is(err, domain.ErrInvalidTransition) {
			// moved on concurrently
			continue
		}
		if err != nil {
			return nil, err
		}
		cancelled++
	}
	if cancelled == 0 {
		return nil, fmt.Errorf("order %s has nothing left to cancel: %w", orderID, domain.ErrInvalidTransition)
	}
	return t.orders.GetOrder(ctx, orderID)
}

// OrderStatus derives the order status from its sub-orders at read time.
func (t *Tracker) OrderStatus(ctx context.Context, orderID uuid.UUID) (domain.Status, error) {
	o, err := t.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status(), nil
}

func (t *Tracker) transition(ctx context.Context, subOrderID uuid.UUID, next domain.Status, authorize func(*domain.SubOrder) error) (result *domain.SubOrder, err error) {
	ctx, span := t.tracer.Start(ctx, "status.Transition", trace.WithAttributes(
		attribute.String("sub_order.id", subOrderID.String()),
		attribute.String("status.next", string(next)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !next.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, domain.ErrInvalidTransition)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		sub, err := t.orders.GetSubOrder(ctx, subOrderID)
		if err != nil {
			return nil, err
		}
		if authorize != nil {
			if err := authorize(sub); err != nil {
				return nil, err
			}
		}

		current := sub.Status
		if !domain.CanTransitionTo(current, next) {
			return nil, fmt.Errorf("%s -> %s: %w", current, next, domain.ErrInvalidTransition)
		}

		updated, err := t.orders.UpdateSubOrderStatus(ctx, subOrderID, current, next)
		if errors.Is(err, order.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update sub-order status: %w", err)
		}

		t.afterTransition(ctx, updated, current)
		return updated, nil
	}
	return nil, fmt.Errorf("sub-order %s: %w", subOrderID, order.ErrStatusConflict)
}

// afterTransition runs only for the caller whose compare-and-set applied the change,
// so stock of a cancelled sub-order is returned exactly once.
func (t *Tracker) afterTransition(ctx context.Context, sub *domain.SubOrder, previous domain.Status) {
	l := logger.FromContext(ctx)

	if sub.Status == domain.StatusCancelled {
		if err := t.stock.RestoreStock(context.WithoutCancel(ctx), sub.StockLines()); err != nil {
			l.Error().Err(err).Str("sub_order_id", sub.ID.String()).Msg("failed to restore stock of cancelled sub-order")
		}
	}

	var orderStatus domain.Status
	if o, err := t.orders.GetOrder(ctx, sub.OrderID); err != nil {
		l.Warn().Err(err).Str("order_id", sub.OrderID.String()).Msg("failed to load order for aggregate status")
	} else {
		orderStatus = o.Status()
	}

	t.metrics.ObserveTransition(string(previous), string(sub.Status))
	t.dispatcher.Dispatch(ctx, domain.NewSubOrderStatusChanged(sub, previous, orderStatus))
	l.Info().
		Str("sub_order_id", sub.ID.String()).
		Str("from", string(previous)).
		Str("to", string(sub.Status)).
		Str("order_status", string(orderStatus)).
		Msg("sub-order status changed")
}
