package catalog

import (
	"context"
	"slices"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// Store defines the interface for catalog storage operations
type Store interface {
	// UpsertSupplier creates or renames a supplier. AcceptingOrders is kept for existing suppliers.
	UpsertSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)

	// ListSuppliers returns all suppliers ordered by id
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	// SetAcceptingOrders switches order intake of a supplier on or off
	SetAcceptingOrders(ctx context.Context, supplierID string, accepting bool) error

	// UpsertCategory creates a category or renames an existing one
	UpsertCategory(ctx context.Context, category domain.Category) (*domain.Category, error)

	// ListCategories returns all categories ordered by id
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// UpsertProduct stores a product coming from the supplier's price list.
	// A product id owned by another supplier is rejected with domain.ErrForbidden,
	// an unknown supplier or category with domain.ErrNotFound.
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// GetProducts returns the products for the given ids, unknown ids are skipped
	GetProducts(ctx context.Context, productIDs []int64) ([]domain.Product, error)

	// ListProducts returns the products matching filter ordered by id
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)

	// SetStock overwrites the stock level of a product
	SetStock(ctx context.Context, productID int64, quantity int32) error

	// DecrementStock takes every line from stock or none of them.
	// On shortage it returns domain.OutOfStockErrors listing each affected line.
	DecrementStock(ctx context.Context, lines []domain.StockLine) error

	// RestoreStock returns quantities taken by DecrementStock
	RestoreStock(ctx context.Context, lines []domain.StockLine) error

	// Close releases the underlying resources
	Close() error
}

// mergeLines sums quantities per product and orders the result by product id,
// which is also the lock order used by the stores.
func mergeLines(lines []domain.StockLine) []domain.StockLine {
	byProduct := make(map[int64]int32, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, seen := byProduct[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		byProduct[line.ProductID] += line.Quantity
	}

	slices.Sort(ids)
	merged := make([]domain.StockLine, 0, len(ids))
	for _, id := range ids {
		merged = append(merged, domain.StockLine{ProductID: id, Quantity: byProduct[id]})
	}
	return merged
}

func validateLines(lines []domain.StockLine) error {
	for _, line := range lines {
		if line.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}
