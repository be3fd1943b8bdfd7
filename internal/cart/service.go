package cart

import (
	"context"
	"errors"
	"iter"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

// Catalog is the part of the catalog the cart needs to validate additions.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
}

type Service struct {
	repo    Repository
	cache   Cache
	catalog Catalog
	locker  Locker
	sfg     singleflight.Group // Prevents cache stampede
}

type Option func(*Service)

// WithLocker replaces the in-process buyer lock, e.g. with one shared by several instances.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func NewService(repo Repository, cache Cache, catalog Catalog, opts ...Option) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	s := &Service{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		locker:  NewLocalLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockBuyer takes the lock that AddItem, RemoveItem and cache refills of the buyer's cart wait on.
// Snapshot, Clear and Restore expect the caller to hold it.
func (s *Service) LockBuyer(ctx context.Context, buyerID string) (unlock func(), err error) {
	return s.locker.Lock(ctx, buyerID)
}

// GetCart never fails with ErrCartNotFound: a buyer without a stored cart has an empty one.
func (s *Service) GetCart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(buyerID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, buyerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logger.FromContext(ctx).Warn().Err(err).Str("buyer_id", buyerID).Msg("cart cache get failed")
		}

		// Under the lock no write can invalidate the cache between the read and the refill.
		unlock, errLock := s.locker.Lock(ctx, buyerID)
		if errLock != nil {
			return nil, errLock
		}
		defer unlock()

		cart, errGet := s.repo.GetCart(ctx, buyerID)
		if errors.Is(errGet, ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{BuyerID: buyerID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if errSet := s.cache.Set(setCtx, buyerID, cart); errSet != nil {
			logger.FromContext(ctx).Warn().Err(errSet).Str("buyer_id", buyerID).Msg("cart cache set failed")
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares the pointer between callers
	shared := v.(*domain.Cart)
	return cloneCart(shared), nil
}

// AddItem validates the product against the catalog and adds quantity to the buyer's cart.
// Stock is only checked here, not reserved.
func (s *Service) AddItem(ctx context.Context, buyerID string, productID int64, quantity int32) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	supplier, err := s.catalog.GetSupplier(ctx, product.SupplierID)
	if err != nil {
		return err
	}
	if !supplier.AcceptingOrders {
		return domain.ErrSupplierUnavailable
	}

	unlock, err := s.locker.Lock(ctx, buyerID)
	if err != nil {
		return err
	}
	defer unlock()

	// Read the repository directly so the check never sees a stale cached quantity.
	cart, err := s.repo.GetCart(ctx, buyerID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	// Summed as int64: stock is an int32, so a total that fits stock also fits the cart line.
	if requested := int64(cart.Quantity(productID)) + int64(quantity); requested > int64(product.Stock) {
		return &domain.OutOfStockError{
			ProductID: productID,
			Requested: int32(min(requested, math.MaxInt32)),
			Available: product.Stock,
		}
	}

	item := domain.CartItem{
		ProductID:  productID,
		SupplierID: product.SupplierID,
		Quantity:   quantity,
	}
	if err := s.repo.AddItem(ctx, buyerID, item); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("buyer_id", buyerID).Int64("product_id", productID).Msg("repo add item failed")
		return err
	}

	s.invalidateCache(ctx, buyerID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, buyerID string, productID int64) error {
	unlock, err := s.locker.Lock(ctx, buyerID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.RemoveItem(ctx, buyerID, productID); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("buyer_id", buyerID).Int64("product_id", productID).Msg("repo remove item failed")
		return err
	}

	s.invalidateCache(ctx, buyerID)
	return nil
}

// ListBySupplier returns the cart grouped by supplier in ascending supplier order.
// The cart is read once; each group is assembled only when the consumer asks for it.
func (s *Service) ListBySupplier(ctx context.Context, buyerID string) (iter.Seq[domain.SupplierGroup], error) {
	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return GroupBySupplier(cart.Items), nil
}

func GroupBySupplier(items []domain.CartItem) iter.Seq[domain.SupplierGroup] {
	suppliers := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(suppliers, item.SupplierID) {
			suppliers = append(suppliers, item.SupplierID)
		}
	}
	slices.Sort(suppliers)

	return func(yield func(domain.SupplierGroup) bool) {
		for _, supplierID := range suppliers {
			group := domain.SupplierGroup{SupplierID: supplierID}
			for _, item := range items {
				if item.SupplierID == supplierID {
					group.Items = append(group.Items, item)
				}
			}
			if !yield(group) {
				return
			}
		}
	}
}

// Snapshot reads the cart from the repository, bypassing the cache. The caller holds the buyer lock.
func (s *Service) Snapshot(ctx context.Context, buyerID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, buyerID)
	if errors.Is(err, ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{BuyerID: buyerID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear removes the cart after a successful checkout. A missing cart is not an error.
func (s *Service) Clear(ctx context.Context, buyerID string) error {
	errDelete := s.repo.DeleteCart(ctx, buyerID)
	if errDelete != nil && !errors.Is(errDelete, ErrCartNotFound) {
		logger.FromContext(ctx).Error().Err(errDelete).Str("buyer_id", buyerID).Msg("repo delete cart failed")
		return errDelete
	}

	s.invalidateCache(ctx, buyerID)
	return nil
}

// Restore puts back a cart removed by Clear.
func (s *Service) Restore(ctx context.Context, cart *domain.Cart) error {
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return err
	}
	s.invalidateCache(ctx, cart.BuyerID)
	return nil
}

func (s *Service) invalidateCache(ctx context.Context, buyerID string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, buyerID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("buyer_id", buyerID).Msg("cart cache invalidate failed")
	}
}
