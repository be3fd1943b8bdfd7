package cart

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*domain.Cart)}
}

func (m *MemoryRepository) GetCart(_ context.Context, buyerID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[buyerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *MemoryRepository) UpsertCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stored := cloneCart(cart)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.carts[cart.BuyerID] = stored
	return nil
}

func (m *MemoryRepository) AddItem(_ context.Context, buyerID string, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cart, ok := m.carts[buyerID]
	if !ok {
		cart = &domain.Cart{BuyerID: buyerID, CreatedAt: now}
		m.carts[buyerID] = cart
	}
	cart.UpdatedAt = now

	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			if int64(cart.Items[i].Quantity)+int64(item.Quantity) > math.MaxInt32 {
				return domain.ErrInvalidQuantity
			}
			cart.Items[i].Quantity += item.Quantity
			cart.Items[i].AddedAt = now
			return nil
		}
	}

	item.AddedAt = now
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *MemoryRepository) RemoveItem(_ context.Context, buyerID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[buyerID]
	if !ok {
		return nil
	}
	cart.Items = slices.DeleteFunc(cart.Items, func(item domain.CartItem) bool {
		return item.ProductID == productID
	})
	cart.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) DeleteCart(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[buyerID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, buyerID)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}
