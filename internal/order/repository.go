package order

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

var (
	ErrDuplicateOrder = errors.New("order with this idempotency key already exists")
	ErrStatusConflict = errors.New("sub-order status was changed concurrently")
)

// Repository persists orders together with their sub-orders. Lookups of missing rows
// return domain.ErrNotFound.
type Repository interface {
	// CreateOrder stores the order and all its sub-orders atomically.
	CreateOrder(ctx context.Context, order *domain.Order) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	GetSubOrder(ctx context.Context, subOrderID uuid.UUID) (*domain.SubOrder, error)
	ListSubOrdersBySupplier(ctx context.Context, supplierID string) ([]*domain.SubOrder, error)
	// UpdateSubOrderStatus sets to only if the current status is still from,
	// otherwise it returns ErrStatusConflict.
	UpdateSubOrderStatus(ctx context.Context, subOrderID uuid.UUID, from, to domain.Status) (*domain.SubOrder, error)
	// CountActiveSubOrders counts sub-orders of the supplier that are not in a terminal status.
	CountActiveSubOrders(ctx context.Context, supplierID string) (int, error)

	// MarkOrderAnnounced records that the OrderCreated event of the order is in the outbox.
	MarkOrderAnnounced(ctx context.Context, orderID uuid.UUID) error
	// MarkStatusAnnounced records that the change to status is in the outbox. It does nothing
	// when the sub-order has moved past status meanwhile.
	MarkStatusAnnounced(ctx context.Context, subOrderID uuid.UUID, status domain.Status) error
	// ListUnannounced returns up to limit orders, oldest first, that were created or had a
	// sub-order transition before the given time without the event reaching the outbox.
	ListUnannounced(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error)

	Close() error
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.Contact != nil {
		contact := *o.Contact
		cp.Contact = &contact
	}
	cp.SubOrders = make([]domain.SubOrder, len(o.SubOrders))
	for i := range o.SubOrders {
		cp.SubOrders[i] = *cloneSubOrder(&o.SubOrders[i])
	}
	return &cp
}

func cloneSubOrder(s *domain.SubOrder) *domain.SubOrder {
	cp := *s
	cp.Items = slices.Clone(s.Items)
	return &cp
}
