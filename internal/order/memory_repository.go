package order

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type idempotencyKey struct {
	buyerID string
	key     string
}

type MemoryRepository struct {
	mu          sync.RWMutex
	orders      map[uuid.UUID]*domain.Order
	subOrders   map[uuid.UUID]uuid.UUID // sub-order id -> order id
	idempotency map[idempotencyKey]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:      make(map[uuid.UUID]*domain.Order),
		subOrders:   make(map[uuid.UUID]uuid.UUID),
		idempotency: make(map[idempotencyKey]uuid.UUID),
	}
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idempotencyKey{buyerID: order.BuyerID, key: order.IdempotencyKey}
	if order.IdempotencyKey != "" {
		if _, ok := m.idempotency[key]; ok {
			return ErrDuplicateOrder
		}
	}

	stored := cloneOrder(order)
	m.orders[order.ID] = stored
	for _, sub := range stored.SubOrders {
		m.subOrders[sub.ID] = order.ID
	}
	if order.IdempotencyKey != "" {
		m.idempotency[key] = order.ID
	}
	return nil
}

func (m *MemoryRepository) DeleteOrder(_ context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, sub := range order.SubOrders {
		delete(m.subOrders, sub.ID)
	}
	if order.IdempotencyKey != "" {
		delete(m.idempotency, idempotencyKey{buyerID: order.BuyerID, key: order.IdempotencyKey})
	}
	delete(m.orders, orderID)
	return nil
}

func (m *MemoryRepository) GetOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (m *MemoryRepository) GetOrderByIdempotencyKey(_ context.Context, buyerID, key string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orderID, ok := m.idempotency[idempotencyKey{buyerID: buyerID, key: key}]
	if !ok || key == "" {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(m.orders[orderID]), nil
}

// ListOrdersByBuyer returns the newest orders first.
func (m *MemoryRepository) ListOrdersByBuyer(_ context.Context, buyerID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []*domain.Order
	for _, order := range m.orders {
		if order.BuyerID == buyerID {
			orders = append(orders, cloneOrder(order))
		}
	}
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

func (m *MemoryRepository) GetSubOrder(_ context.Context, subOrderID uuid.UUID) (*domain.SubOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub := m.findSubOrder(subOrderID)
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return cloneSubOrder(sub), nil
}

func (m *MemoryRepository) ListSubOrdersBySupplier(_ context.Context, supplierID string) ([]*domain.SubOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subs []*domain.SubOrder
	for _, order := range m.orders {
		for i := range order.SubOrders {
			if order.SubOrders[i].SupplierID == supplierID {
				subs = append(subs, cloneSubOrder(&order.SubOrders[i]))
			}
		}
	}
	slices.SortFunc(subs, func(a, b *domain.SubOrder) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return subs, nil
}

func (m *MemoryRepository) UpdateSubOrderStatus(_ context.Context, subOrderID uuid.UUID, from, to domain.Status) (*domain.SubOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := m.findSubOrder(subOrderID)
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	if sub.Status != from {
		return nil, ErrStatusConflict
	}
	sub.PreviousStatus = from
	sub.Status = to
	sub.UpdatedAt = time.Now().UTC()
	return cloneSubOrder(sub), nil
}

func (m *MemoryRepository) CountActiveSubOrders(_ context.Context, supplierID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, order := range m.orders {
		for _, sub := range order.SubOrders {
			if sub.SupplierID == supplierID && !sub.Status.IsTerminal() {
				count++
			}
		}
	}
	return count, nil
}

func (m *MemoryRepository) MarkOrderAnnounced(_ context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	order.Announced = true
	return nil
}

func (m *MemoryRepository) MarkStatusAnnounced(_ context.Context, subOrderID uuid.UUID, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := m.findSubOrder(subOrderID)
	if sub == nil {
		return domain.ErrNotFound
	}
	if sub.Status == status {
		sub.AnnouncedStatus = status
	}
	return nil
}

func (m *MemoryRepository) ListUnannounced(_ context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []*domain.Order
	for _, order := range m.orders {
		if unannounced(order, before) {
			orders = append(orders, cloneOrder(order))
		}
	}
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func unannounced(order *domain.Order, before time.Time) bool {
	if !order.Announced && order.CreatedAt.Before(before) {
		return true
	}
	for i := range order.SubOrders {
		if order.SubOrders[i].Unannounced() && order.SubOrders[i].UpdatedAt.Before(before) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) Close() error {
	return nil
}

// findSubOrder returns the stored sub-order; callers must hold the lock.
func (m *MemoryRepository) findSubOrder(subOrderID uuid.UUID) *domain.SubOrder {
	orderID, ok := m.subOrders[subOrderID]
	if !ok {
		return nil
	}
	order := m.orders[orderID]
	for i := range order.SubOrders {
		if order.SubOrders[i].ID == subOrderID {
			return &order.SubOrders[i]
		}
	}
	return nil
}
