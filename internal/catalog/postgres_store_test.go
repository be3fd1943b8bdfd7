package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres/postgrestest"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	store := NewPostgresStore(postgrestest.Start(t))

	ctx := context.Background()
	_, err := store.UpsertSupplier(ctx, domain.Supplier{ID: "x", Name: "Supplier X"})
	require.NoError(t, err)
	_, err = store.UpsertSupplier(ctx, domain.Supplier{ID: "y", Name: "Supplier Y"})
	require.NoError(t, err)
	return store
}

func TestPostgresStore_SupplierLifecycle(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	supplier, err := store.GetSupplier(ctx, "x")
	require.NoError(t, err)
	assert.True(t, supplier.AcceptingOrders)

	require.NoError(t, store.SetAcceptingOrders(ctx, "x", false))
	renamed, err := store.UpsertSupplier(ctx, domain.Supplier{ID: "x", Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)
	assert.False(t, renamed.AcceptingOrders)

	_, err = store.GetSupplier(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_UpsertProduct(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	stored, err := store.UpsertProduct(ctx, domain.Product{
		ID:               1,
		SupplierID:       "x",
		Name:             "Phone",
		Model:            "P-1",
		Price:            decimal.RequireFromString("199.90"),
		RecommendedPrice: decimal.RequireFromString("249.00"),
		Stock:            5,
		Characteristics:  map[string]string{"color": "black"},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("199.90").Equal(stored.Price))
	assert.Equal(t, "black", stored.Characteristics["color"])

	_, err = store.UpsertProduct(ctx, domain.Product{ID: 1, SupplierID: "y", Name: "Stolen", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = store.UpsertProduct(ctx, domain.Product{ID: 2, SupplierID: "nobody", Name: "Ghost", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Phone", p.Name)
}

func TestPostgresStore_DecrementStock_AllOrNothing(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	addProduct(t, store, 1, "x", 5)
	addProduct(t, store, 2, "y", 2)

	err := store.DecrementStock(ctx, []domain.StockLine{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 3},
	})
	require.ErrorIs(t, err, domain.ErrOutOfStock)

	var shortages domain.OutOfStockErrors
	require.ErrorAs(t, err, &shortages)
	require.Len(t, shortages, 1)
	assert.Equal(t, int64(2), shortages[0].ProductID)

	assert.Equal(t, int32(5), stockOf(t, store, 1))
	assert.Equal(t, int32(2), stockOf(t, store, 2))

	require.NoError(t, store.DecrementStock(ctx, []domain.StockLine{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 2},
	}))
	assert.Equal(t, int32(3), stockOf(t, store, 1))
	assert.Equal(t, int32(0), stockOf(t, store, 2))

	require.NoError(t, store.RestoreStock(ctx, []domain.StockLine{{ProductID: 2, Quantity: 2}}))
	assert.Equal(t, int32(2), stockOf(t, store, 2))

	err = store.DecrementStock(ctx, []domain.StockLine{{ProductID: 404, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ConcurrentDecrements_NoOversell(t *testing.T) {
	store := setupPostgresStore(t)
	addProduct(t, store, 1, "x", 100)

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.DecrementStock(context.Background(), []domain.StockLine{{ProductID: 1, Quantity: 20}}); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), successCount.Load())
	assert.Equal(t, int32(0), stockOf(t, store, 1))
}

func TestPostgresStore_ListProducts(t *testing.T) {
	store := setupPostgresStore(t)
	addProduct(t, store, 1, "x", 1)
	addProduct(t, store, 2, "y", 1)
	addProduct(t, store, 3, "x", 0)

	onlyX, err := store.ListProducts(context.Background(), domain.ProductFilter{SupplierID: "x"})
	require.NoError(t, err)
	assert.Len(t, onlyX, 2)

	some, err := store.GetProducts(context.Background(), []int64{2, 3, 99})
	require.NoError(t, err)
	assert.Len(t, some, 2)
}

func TestPostgresStore_Categories(t *testing.T) {
	testCategories(t, setupPostgresStore(t))
}
