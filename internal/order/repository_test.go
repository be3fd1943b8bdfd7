package order

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres/postgrestest"
)

type repoFactory func(t *testing.T) Repository

var factories = map[string]repoFactory{
	"memory": func(t *testing.T) Repository {
		return NewMemoryRepository()
	},
	"postgres": func(t *testing.T) Repository {
		return NewPostgresRepository(postgrestest.Start(t))
	},
}

func newTestOrder(buyerID, key string, suppliers ...string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	order := &domain.Order{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	for i, supplierID := range suppliers {
		price := decimal.NewFromInt(int64(10 * (i + 1)))
		order.SubOrders = append(order.SubOrders, domain.SubOrder{
			ID:         uuid.New(),
			OrderID:    order.ID,
			SupplierID: supplierID,
			BuyerID:    buyerID,
			Items: []domain.LineItem{{
				ProductID:   int64(i + 1),
				ProductName: "product",
				Quantity:    2,
				UnitPrice:   price,
				Subtotal:    price.Mul(decimal.NewFromInt(2)),
			}},
			Status:    domain.StatusNew,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return order
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func forEachRepository(t *testing.T, fn func(t *testing.T, repo Repository)) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		order := newTestOrder("buyer", "", "x", "y")
		order.Contact = &domain.Contact{City: "Moscow", Street: "Tverskaya", House: "1", Phone: "+7000"}
		require.NoError(t, repo.CreateOrder(ctx, order))

		got, err := repo.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(order.SubOrders, got.SubOrders, decimalEqual); diff != "" {
			t.Errorf("sub-orders mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, order.Contact, got.Contact)
		assert.Equal(t, domain.StatusNew, got.Status())
		assert.True(t, decimal.NewFromInt(60).Equal(got.Total()))

		_, err = repo.GetOrder(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRepository_IdempotencyKey(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		first := newTestOrder("buyer", "key-1", "x")
		require.NoError(t, repo.CreateOrder(ctx, first))

		err := repo.CreateOrder(ctx, newTestOrder("buyer", "key-1", "x"))
		assert.ErrorIs(t, err, ErrDuplicateOrder)

		// same key, other buyer
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder("other", "key-1", "x")))
		// no key never collides
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder("buyer", "", "x")))
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder("buyer", "", "x")))

		got, err := repo.GetOrderByIdempotencyKey(ctx, "buyer", "key-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		_, err = repo.GetOrderByIdempotencyKey(ctx, "buyer", "key-2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRepository_DeleteOrder(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		order := newTestOrder("buyer", "key", "x", "y")
		require.NoError(t, repo.CreateOrder(ctx, order))

		require.NoError(t, repo.DeleteOrder(ctx, order.ID))
		_, err := repo.GetOrder(ctx, order.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.GetSubOrder(ctx, order.SubOrders[0].ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteOrder(ctx, order.ID), domain.ErrNotFound)

		// the key is free again
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder("buyer", "key", "x")))
	})
}

func TestRepository_Listings(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		older := newTestOrder("buyer", "", "x", "y")
		older.CreatedAt = older.CreatedAt.Add(-time.Hour)
		newer := newTestOrder("buyer", "", "y")
		require.NoError(t, repo.CreateOrder(ctx, older))
		require.NoError(t, repo.CreateOrder(ctx, newer))
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder("other", "", "x")))

		orders, err := repo.ListOrdersByBuyer(ctx, "buyer")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, newer.ID, orders[0].ID)
		assert.Len(t, orders[1].SubOrders, 2)

		none, err := repo.ListOrdersByBuyer(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		subs, err := repo.ListSubOrdersBySupplier(ctx, "y")
		require.NoError(t, err)
		require.Len(t, subs, 2)
		for _, sub := range subs {
			assert.Equal(t, "y", sub.SupplierID)
		}

		active, err := repo.CountActiveSubOrders(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, 2, active)
	})
}

func TestRepository_UpdateSubOrderStatus(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		order := newTestOrder("buyer", "", "x")
		require.NoError(t, repo.CreateOrder(ctx, order))
		subID := order.SubOrders[0].ID

		updated, err := repo.UpdateSubOrderStatus(ctx, subID, domain.StatusNew, domain.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)

		_, err = repo.UpdateSubOrderStatus(ctx, subID, domain.StatusNew, domain.StatusCancelled)
		assert.ErrorIs(t, err, ErrStatusConflict)

		_, err = repo.UpdateSubOrderStatus(ctx, uuid.New(), domain.StatusNew, domain.StatusConfirmed)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.UpdateSubOrderStatus(ctx, subID, domain.StatusConfirmed, domain.StatusCancelled)
		require.NoError(t, err)
		active, err := repo.CountActiveSubOrders(ctx, "x")
		require.NoError(t, err)
		assert.Zero(t, active)
	})
}

func TestRepository_UpdateSubOrderStatus_SingleWinner(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		order := newTestOrder("buyer", "", "x")
		require.NoError(t, repo.CreateOrder(ctx, order))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.UpdateSubOrderStatus(ctx, order.SubOrders[0].ID, domain.StatusNew, domain.StatusCancelled); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	order := newTestOrder("buyer", "", "x")
	require.NoError(t, repo.CreateOrder(ctx, order))

	order.SubOrders[0].Status = domain.StatusDelivered
	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	got.SubOrders[0].Items[0].Quantity = 99

	again, err := repo.GetSubOrder(ctx, order.SubOrders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, again.Status)
	assert.Equal(t, int32(2), again.Items[0].Quantity)
}

func TestRepository_AnnouncementLedger(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		later := time.Now().Add(time.Hour)
		order := newTestOrder("buyer", "", "x", "y")
		require.NoError(t, repo.CreateOrder(ctx, order))

		pending, err := repo.ListUnannounced(ctx, order.CreatedAt.Add(-time.Minute), 10)
		require.NoError(t, err)
		assert.Empty(t, pending, "changes newer than the cutoff are not listed")

		pending, err = repo.ListUnannounced(ctx, later, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.False(t, pending[0].Announced)

		require.NoError(t, repo.MarkOrderAnnounced(ctx, order.ID))
		pending, err = repo.ListUnannounced(ctx, later, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		subID := order.SubOrders[0].ID
		_, err = repo.UpdateSubOrderStatus(ctx, subID, domain.StatusNew, domain.StatusConfirmed)
		require.NoError(t, err)

		pending, err = repo.ListUnannounced(ctx, later, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.True(t, pending[0].Announced)
		var changed *domain.SubOrder
		for i := range pending[0].SubOrders {
			if pending[0].SubOrders[i].ID == subID {
				changed = &pending[0].SubOrders[i]
			}
		}
		require.NotNil(t, changed)
		assert.Equal(t, domain.StatusNew, changed.PreviousStatus)
		assert.True(t, changed.Unannounced())

		// a stale mark for a status the sub-order already left is ignored
		require.NoError(t, repo.MarkStatusAnnounced(ctx, subID, domain.StatusNew))
		pending, err = repo.ListUnannounced(ctx, later, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		require.NoError(t, repo.MarkStatusAnnounced(ctx, subID, domain.StatusConfirmed))
		pending, err = repo.ListUnannounced(ctx, later, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestRepository_ListUnannouncedLimit(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.CreateOrder(ctx, newTestOrder("buyer", "", "x")))
		}
		pending, err := repo.ListUnannounced(ctx, time.Now().Add(time.Hour), 2)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})
}
