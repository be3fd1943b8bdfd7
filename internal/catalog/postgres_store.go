package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

const productColumns = `id, supplier_id, category_id, name, model, price, recommended_price, stock, characteristics, updated_at`

type productRow struct {
	ID               int64           `db:"id"`
	SupplierID       string          `db:"supplier_id"`
	CategoryID       sql.NullInt64   `db:"category_id"`
	Name             string          `db:"name"`
	Model            string          `db:"model"`
	Price            decimal.Decimal `db:"price"`
	RecommendedPrice decimal.Decimal `db:"recommended_price"`
	Stock            int32           `db:"stock"`
	Characteristics  []byte          `db:"characteristics"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r *productRow) toDomain() (*domain.Product, error) {
	p := &domain.Product{
		ID:               r.ID,
		SupplierID:       r.SupplierID,
		CategoryID:       r.CategoryID.Int64,
		Name:             r.Name,
		Model:            r.Model,
		Price:            r.Price,
		RecommendedPrice: r.RecommendedPrice,
		Stock:            r.Stock,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.Characteristics) > 0 {
		if err := json.Unmarshal(r.Characteristics, &p.Characteristics); err != nil {
			return nil, fmt.Errorf("unmarshal characteristics of product %d: %w", r.ID, err)
		}
	}
	return p, nil
}

// PostgresStore implements Store on top of the products and suppliers tables.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

func (s *PostgresStore) UpsertSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	query := `INSERT INTO suppliers (id, name, url, accepting_orders, created_at)
	          VALUES ($1, $2, $3, TRUE, NOW())
	          ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url
	          RETURNING id, name, url, accepting_orders, created_at`

	var stored domain.Supplier
	if err := s.db.GetContext(ctx, &stored, query, supplier.ID, supplier.Name, supplier.URL); err != nil {
		return nil, fmt.Errorf("upsert supplier: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	query := `SELECT id, name, url, accepting_orders, created_at FROM suppliers WHERE id = $1`

	var supplier domain.Supplier
	err := s.db.GetContext(ctx, &supplier, query, supplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query supplier: %w", err)
	}
	return &supplier, nil
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers := []domain.Supplier{}
	query := `SELECT id, name, url, accepting_orders, created_at FROM suppliers ORDER BY id`
	if err := s.db.SelectContext(ctx, &suppliers, query); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}

func (s *PostgresStore) SetAcceptingOrders(ctx context.Context, supplierID string, accepting bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE suppliers SET accepting_orders = $1 WHERE id = $2`, accepting, supplierID)
	if err != nil {
		return fmt.Errorf("update supplier state: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresStore) UpsertCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	query := `INSERT INTO categories (id, name) VALUES ($1, $2)
	          ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	          RETURNING id, name`

	var stored domain.Category
	if err := s.db.GetContext(ctx, &stored, query, category.ID, category.Name); err != nil {
		return nil, fmt.Errorf("upsert category: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories := []domain.Category{}
	if err := s.db.SelectContext(ctx, &categories, `SELECT id, name FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Stock < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	characteristics := product.Characteristics
	if characteristics == nil {
		characteristics = map[string]string{}
	}
	characteristicsJSON, err := json.Marshal(characteristics)
	if err != nil {
		return nil, fmt.Errorf("marshal characteristics: %w", err)
	}

	// The WHERE clause keeps a product with another owner untouched, which yields no row.
	query := `INSERT INTO products (` + productColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	          ON CONFLICT (id) DO UPDATE SET
	              category_id = EXCLUDED.category_id,
	              name = EXCLUDED.name,
	              model = EXCLUDED.model,
	              price = EXCLUDED.price,
	              recommended_price = EXCLUDED.recommended_price,
	              stock = EXCLUDED.stock,
	              characteristics = EXCLUDED.characteristics,
	              updated_at = NOW()
	          WHERE products.supplier_id = EXCLUDED.supplier_id
	          RETURNING ` + productColumns

	var row productRow
	err = s.db.GetContext(ctx, &row, query,
		product.ID,
		product.SupplierID,
		sql.NullInt64{Int64: product.CategoryID, Valid: product.CategoryID != 0},
		product.Name,
		product.Model,
		product.Price,
		product.RecommendedPrice,
		product.Stock,
		characteristicsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrForbidden
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("upsert product: %w", err)
	}
	return row.toDomain()
}

func (s *PostgresStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return row.toDomain()
}

func (s *PostgresStore) GetProducts(ctx context.Context, productIDs []int64) ([]domain.Product, error) {
	var rows []productRow
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(productIDs)); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return toDomainProducts(rows)
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
	          WHERE ($1::TEXT = '' OR supplier_id = $1) AND ($2::BIGINT = 0 OR category_id = $2)
	          ORDER BY id`

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, filter.SupplierID, filter.CategoryID); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return toDomainProducts(rows)
}

func (s *PostgresStore) SetStock(ctx context.Context, productID int64, quantity int32) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`, quantity, productID)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return expectOneRow(res)
}

// DecrementStock runs one conditional update per product inside a single transaction.
// Rows are touched in ascending id order so concurrent checkouts lock them in the same order.
func (s *PostgresStore) DecrementStock(ctx context.Context, lines []domain.StockLine) (err error) {
	if err := validateLines(lines); err != nil {
		return err
	}
	merged := mergeLines(lines)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var shortages domain.OutOfStockErrors
	for _, line := range merged {
		var remaining int32
		errUpdate := tx.GetContext(ctx, &remaining,
			`UPDATE products SET stock = stock - $1, updated_at = NOW()
			 WHERE id = $2 AND stock >= $1
			 RETURNING stock`,
			line.Quantity, line.ProductID)
		if errUpdate == nil {
			continue
		}
		if !errors.Is(errUpdate, sql.ErrNoRows) {
			return fmt.Errorf("decrement stock of product %d: %w", line.ProductID, errUpdate)
		}

		var available int32
		errSelect := tx.GetContext(ctx, &available, `SELECT stock FROM products WHERE id = $1`, line.ProductID)
		if errors.Is(errSelect, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if errSelect != nil {
			return fmt.Errorf("read stock of product %d: %w", line.ProductID, errSelect)
		}
		shortages = append(shortages, &domain.OutOfStockError{
			ProductID: line.ProductID,
			Requested: line.Quantity,
			Available: available,
		})
	}

	if len(shortages) > 0 {
		return shortages
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stock decrement: %w", err)
	}
	return nil
}

func (s *PostgresStore) RestoreStock(ctx context.Context, lines []domain.StockLine) (err error) {
	if err := validateLines(lines); err != nil {
		return err
	}
	merged := mergeLines(lines)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, line := range merged {
		res, errUpdate := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`,
			line.Quantity, line.ProductID)
		if errUpdate != nil {
			return fmt.Errorf("restore stock of product %d: %w", line.ProductID, errUpdate)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stock restore: %w", err)
	}
	return nil
}

// Close is a no-op, the pool belongs to the caller of NewPostgresStore.
func (s *PostgresStore) Close() error {
	return nil
}

func toDomainProducts(rows []productRow) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
