// Package checkout turns a buyer's cart into one order with a sub-order per supplier.
package checkout

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

type Catalog interface {
	GetProducts(ctx context.Context, productIDs []int64) ([]domain.Product, error)
	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
	DecrementStock(ctx context.Context, lines []domain.StockLine) error
	RestoreStock(ctx context.Context, lines []domain.StockLine) error
}

// Carts is held under the buyer lock for the whole checkout, so the cart cannot change
// between the snapshot and Clear.
type Carts interface {
	LockBuyer(ctx context.Context, buyerID string) (unlock func(), err error)
	Snapshot(ctx context.Context, buyerID string) (*domain.Cart, error)
	Clear(ctx context.Context, buyerID string) error
	Restore(ctx context.Context, cart *domain.Cart) error
}

type Request struct {
	BuyerID        string
	IdempotencyKey string
	Contact        *domain.Contact
}

type Service struct {
	catalog    Catalog
	carts      Carts
	orders     order.Repository
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func NewService(catalog Catalog, carts Carts, orders order.Repository, dispatcher notify.Dispatcher, m *metrics.Metrics) *Service {
	return &Service{
		catalog:    catalog,
		carts:      carts,
		orders:     orders,
		dispatcher: dispatcher,
		metrics:    m,
		tracer:     otel.Tracer("github.com/tamoykinden/Final-project-auto-purch/internal/checkout"),
	}
}

// Checkout is all-or-nothing: on any error the cart and the stock are left as they were.
func (s *Service) Checkout(ctx context.Context, req Request) (orderID uuid.UUID, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(attribute.String("buyer.id", req.BuyerID)))
	var subOrders int
	defer func() {
		s.metrics.ObserveCheckout(resultLabel(err), subOrders)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("order.id", orderID.String()))
		}
		span.End()
	}()

	// One checkout per buyer at a time, so a cart never ends up in two orders.
	unlock, err := s.carts.LockBuyer(ctx, req.BuyerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	if existing, ok, err := s.findByIdempotencyKey(ctx, req); err != nil || ok {
		return existing, err
	}

	cart, err := s.carts.Snapshot(ctx, req.BuyerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.IsEmpty() {
		return uuid.Nil, domain.ErrEmptyCart
	}

	products, err := s.loadProducts(ctx, cart)
	if err != nil {
		return uuid.Nil, err
	}

	lines := stockLines(cart)
	if err := s.catalog.DecrementStock(ctx, lines); err != nil {
		return uuid.Nil, err
	}

	newOrder := buildOrder(req, cart, products)
	if err := s.orders.CreateOrder(ctx, newOrder); err != nil {
		s.restoreStock(ctx, lines)
		if errors.Is(err, order.ErrDuplicateOrder) {
			// Another instance won the race for this idempotency key.
			if existing, ok, errFind := s.findByIdempotencyKey(ctx, req); errFind == nil && ok {
				return existing, nil
			}
		}
		return uuid.Nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.carts.Clear(ctx, req.BuyerID); err != nil {
		s.deleteOrder(ctx, newOrder.ID)
		s.restoreStock(ctx, lines)
		s.restoreCart(ctx, cart)
		return uuid.Nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	subOrders = len(newOrder.SubOrders)
	s.dispatcher.Dispatch(ctx, domain.NewOrderCreated(newOrder))
	logger.FromContext(ctx).Info().
		Str("order_id", newOrder.ID.String()).
		Str("buyer_id", req.BuyerID).
		Int("sub_orders", subOrders).
		Msg("order created")
	return newOrder.ID, nil
}

func (s *Service) findByIdempotencyKey(ctx context.Context, req Request) (uuid.UUID, bool, error) {
	if req.IdempotencyKey == "" {
		return uuid.Nil, false, nil
	}
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.BuyerID, req.IdempotencyKey)
	if errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	logger.FromContext(ctx).Info().
		Str("idempotency_key", req.IdempotencyKey).
		Str("order_id", existing.ID.String()).
		Msg("duplicate checkout request detected")
	return existing.ID, true, nil
}

// loadProducts fetches every product in the cart and checks that each supplier still takes orders.
func (s *Service) loadProducts(ctx context.Context, cart *domain.Cart) (map[int64]domain.Product, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	found, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	products := make(map[int64]domain.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	checked := make(map[string]bool)
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, domain.ErrNotFound)
		}
		if checked[p.SupplierID] {
			continue
		}
		supplier, err := s.catalog.GetSupplier(ctx, p.SupplierID)
		if err != nil {
			return nil, fmt.Errorf("supplier %s: %w", p.SupplierID, err)
		}
		if !supplier.AcceptingOrders {
			return nil, fmt.Errorf("supplier %s: %w", p.SupplierID, domain.ErrSupplierUnavailable)
		}
		checked[p.SupplierID] = true
	}
	return products, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrSupplierUnavailable):
		return "supplier_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
