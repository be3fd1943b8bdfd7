package catalog

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// productEntry guards one product. Stock changes lock only the products they touch,
// so checkouts of unrelated products never wait on each other.
type productEntry struct {
	mu      sync.Mutex
	product domain.Product
}

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu         sync.RWMutex // guards the maps, not the entries
	suppliers  map[string]*domain.Supplier
	categories map[int64]domain.Category
	products   map[int64]*productEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suppliers:  make(map[string]*domain.Supplier),
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]*productEntry),
	}
}

func (s *MemoryStore) UpsertSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.suppliers[supplier.ID]
	if ok {
		existing.Name = supplier.Name
		existing.URL = supplier.URL
		cp := *existing
		return &cp, nil
	}

	supplier.AcceptingOrders = true
	supplier.CreatedAt = time.Now()
	s.suppliers[supplier.ID] = &supplier
	cp := supplier
	return &cp, nil
}

func (s *MemoryStore) GetSupplier(_ context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[supplierID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *supplier
	return &cp, nil
}

func (s *MemoryStore) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, id := range slices.Sorted(maps.Keys(s.suppliers)) {
		suppliers = append(suppliers, *s.suppliers[id])
	}
	return suppliers, nil
}

func (s *MemoryStore) SetAcceptingOrders(_ context.Context, supplierID string, accepting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier, ok := s.suppliers[supplierID]
	if !ok {
		return domain.ErrNotFound
	}
	supplier.AcceptingOrders = accepting
	return nil
}

func (s *MemoryStore) UpsertCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[category.ID] = category
	return &category, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, id := range slices.Sorted(maps.Keys(s.categories)) {
		categories = append(categories, s.categories[id])
	}
	return categories, nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Stock < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[product.SupplierID]; !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := s.categories[product.CategoryID]; product.CategoryID != 0 && !ok {
		return nil, domain.ErrNotFound
	}

	product.Characteristics = maps.Clone(product.Characteristics)
	product.UpdatedAt = time.Now()

	entry, ok := s.products[product.ID]
	if !ok {
		s.products[product.ID] = &productEntry{product: product}
		return cloneProduct(&product), nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.product.SupplierID != product.SupplierID {
		return nil, domain.ErrForbidden
	}
	entry.product = product
	return cloneProduct(&product), nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	entry, ok := s.entry(productID)
	if !ok {
		return nil, domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneProduct(&entry.product), nil
}

func (s *MemoryStore) GetProducts(_ context.Context, productIDs []int64) ([]domain.Product, error) {
	result := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		entry, ok := s.entry(id)
		if !ok {
			continue
		}
		entry.mu.Lock()
		result = append(result, *cloneProduct(&entry.product))
		entry.mu.Unlock()
	}
	return result, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.products))
	entries := make([]*productEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.products[id])
	}
	s.mu.RUnlock()

	result := make([]domain.Product, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if filter.Match(&entry.product) {
			result = append(result, *cloneProduct(&entry.product))
		}
		entry.mu.Unlock()
	}
	return result, nil
}

func (s *MemoryStore) SetStock(_ context.Context, productID int64, quantity int32) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	entry, ok := s.entry(productID)
	if !ok {
		return domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.product.Stock = quantity
	entry.product.UpdatedAt = time.Now()
	return nil
}

// DecrementStock locks the involved products in ascending id order, validates every line and
// only then applies the decrements.
func (s *MemoryStore) DecrementStock(_ context.Context, lines []domain.StockLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	merged := mergeLines(lines)

	entries, err := s.lockEntries(merged)
	if err != nil {
		return err
	}
	defer unlockEntries(entries)

	// First pass: validate all lines have sufficient stock
	var shortages domain.OutOfStockErrors
	for i, line := range merged {
		if available := entries[i].product.Stock; available < line.Quantity {
			shortages = append(shortages, &domain.OutOfStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			})
		}
	}
	if len(shortages) > 0 {
		return shortages
	}

	// Second pass: take stock for all lines
	for i, line := range merged {
		entries[i].product.Stock -= line.Quantity
	}
	return nil
}

func (s *MemoryStore) RestoreStock(_ context.Context, lines []domain.StockLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	merged := mergeLines(lines)

	entries, err := s.lockEntries(merged)
	if err != nil {
		return err
	}
	defer unlockEntries(entries)

	for i, line := range merged {
		entries[i].product.Stock += line.Quantity
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) entry(productID int64) (*productEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.products[productID]
	return entry, ok
}

// lockEntries expects lines sorted by product id. Entries are never removed, so holding
// them after the map lock is released is safe.
func (s *MemoryStore) lockEntries(lines []domain.StockLine) ([]*productEntry, error) {
	s.mu.RLock()
	entries := make([]*productEntry, 0, len(lines))
	for _, line := range lines {
		entry, ok := s.products[line.ProductID]
		if !ok {
			s.mu.RUnlock()
			return nil, domain.ErrNotFound
		}
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
	}
	return entries, nil
}

func unlockEntries(entries []*productEntry) {
	for _, entry := range entries {
		entry.mu.Unlock()
	}
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Characteristics = maps.Clone(p.Characteristics)
	return &cp
}
