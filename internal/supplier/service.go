// Package supplier holds the supplier-side operations: catalog import, stock updates,
// the order intake switch and the supplier's view of its sub-orders.
package supplier

import (
	"context"
	"fmt"

	"github.com/tamoykinden/Final-project-auto-purch/internal/catalog"
	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/order"
)

type Service struct {
	catalog catalog.Store
	orders  order.Repository
}

func NewService(store catalog.Store, orders order.Repository) *Service {
	return &Service{catalog: store, orders: orders}
}

// ImportProducts upserts the categories of a price list and then the supplier's products.
// Each product is stamped with supplierID, so a supplier can never write into another
// supplier's catalog. Categories are shared between suppliers.
func (s *Service) ImportProducts(ctx context.Context, supplierID string, categories []domain.Category, products []domain.Product) ([]domain.Product, error) {
	if _, err := s.catalog.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}

	for _, c := range categories {
		if _, err := s.catalog.UpsertCategory(ctx, c); err != nil {
			return nil, fmt.Errorf("category %d: %w", c.ID, err)
		}
	}

	stored := make([]domain.Product, 0, len(products))
	for _, p := range products {
		p.SupplierID = supplierID
		saved, err := s.catalog.UpsertProduct(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", p.ID, err)
		}
		stored = append(stored, *saved)
	}
	return stored, nil
}

func (s *Service) SetStock(ctx context.Context, supplierID string, productID int64, quantity int32) error {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.SupplierID != supplierID {
		return domain.ErrForbidden
	}
	return s.catalog.SetStock(ctx, productID, quantity)
}

func (s *Service) SetAcceptingOrders(ctx context.Context, supplierID string, accepting bool) error {
	return s.catalog.SetAcceptingOrders(ctx, supplierID, accepting)
}

func (s *Service) State(ctx context.Context, supplierID string) (*domain.SupplierState, error) {
	sup, err := s.catalog.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListProducts(ctx, domain.ProductFilter{SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	active, err := s.orders.CountActiveSubOrders(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	state := &domain.SupplierState{
		Supplier:        *sup,
		TotalProducts:   len(products),
		ActiveSubOrders: active,
	}
	for _, p := range products {
		if p.Stock > 0 {
			state.InStockProducts++
		}
	}
	return state, nil
}

// Orders lists the supplier's sub-orders, newest first. Other suppliers' parts of the
// same orders are not visible.
func (s *Service) Orders(ctx context.Context, supplierID string) ([]*domain.SubOrder, error) {
	return s.orders.ListSubOrdersBySupplier(ctx, supplierID)
}
