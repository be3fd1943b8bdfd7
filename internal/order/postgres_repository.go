package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

const (
	subOrderColumns       = `id, order_id, supplier_id, buyer_id, items, status, created_at, updated_at`
	subOrderSelectColumns = subOrderColumns + `, previous_status, announced_status`
	orderSelectColumns    = `id, buyer_id, idempotency_key, contact, created_at, announced_at`
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) (err error) {
	var contact any
	if order.Contact != nil {
		contactJSON, errMarshal := json.Marshal(order.Contact)
		if errMarshal != nil {
			return fmt.Errorf("failed to marshal contact: %w", errMarshal)
		}
		contact = contactJSON
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_id, idempotency_key, contact, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		order.ID,
		order.BuyerID,
		sql.NullString{String: order.IdempotencyKey, Valid: order.IdempotencyKey != ""},
		contact,
		order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.SubOrders {
		sub := &order.SubOrders[i]
		itemsJSON, errMarshal := json.Marshal(sub.Items)
		if errMarshal != nil {
			return fmt.Errorf("failed to marshal sub-order items: %w", errMarshal)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sub_orders (`+subOrderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sub.ID,
			sub.OrderID,
			sub.SupplierID,
			sub.BuyerID,
			itemsJSON,
			sub.Status,
			sub.CreatedAt,
			sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert sub-order: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// DeleteOrder removes the order, sub-orders go with it through ON DELETE CASCADE.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderSelectColumns+` FROM orders WHERE id = $1`, orderID)
	return r.loadOrder(ctx, row)
}

func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderSelectColumns+` FROM orders WHERE buyer_id = $1 AND idempotency_key = $2`, buyerID, key)
	return r.loadOrder(ctx, row)
}

func (r *PostgresRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderSelectColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *PostgresRepository) GetSubOrder(ctx context.Context, subOrderID uuid.UUID) (*domain.SubOrder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subOrderSelectColumns+` FROM sub_orders WHERE id = $1`, subOrderID)
	sub, err := scanSubOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sub, err
}

func (r *PostgresRepository) ListSubOrdersBySupplier(ctx context.Context, supplierID string) ([]*domain.SubOrder, error) {
	return r.querySubOrders(ctx,
		`SELECT `+subOrderSelectColumns+` FROM sub_orders WHERE supplier_id = $1 ORDER BY created_at DESC, id`,
		supplierID)
}

func (r *PostgresRepository) UpdateSubOrderStatus(ctx context.Context, subOrderID uuid.UUID, from, to domain.Status) (*domain.SubOrder, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE sub_orders SET status = $1, previous_status = $3, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING `+subOrderSelectColumns,
		to, subOrderID, from)
	sub, err := scanSubOrder(row)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update sub-order status: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sub_orders WHERE id = $1)`, subOrderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check sub-order: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, ErrStatusConflict
}

func (r *PostgresRepository) CountActiveSubOrders(ctx context.Context, supplierID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sub_orders WHERE supplier_id = $1 AND status NOT IN ($2, $3)`,
		supplierID, domain.StatusDelivered, domain.StatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sub-orders: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) MarkOrderAnnounced(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET announced_at = NOW() WHERE id = $1 AND announced_at IS NULL`, orderID)
	if err != nil {
		return fmt.Errorf("mark order announced: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkStatusAnnounced(ctx context.Context, subOrderID uuid.UUID, status domain.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sub_orders SET announced_status = status WHERE id = $1 AND status = $2`, subOrderID, status)
	if err != nil {
		return fmt.Errorf("mark status announced: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListUnannounced(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderSelectColumns+` FROM orders
		 WHERE id IN (
		     SELECT id FROM orders WHERE announced_at IS NULL AND created_at < $1
		     UNION
		     SELECT order_id FROM sub_orders
		     WHERE status <> $2 AND announced_status IS DISTINCT FROM status AND updated_at < $1)
		 ORDER BY created_at
		 LIMIT $3`,
		before, domain.StatusNew, limit)
}

// Close is a no-op, the pool is shared with the other stores.
func (r *PostgresRepository) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) loadOrder(ctx context.Context, row *sql.Row) (*domain.Order, error) {
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	subs, err := r.querySubOrders(ctx,
		`SELECT `+subOrderSelectColumns+` FROM sub_orders WHERE order_id = $1 ORDER BY supplier_id`, order.ID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		order.SubOrders = append(order.SubOrders, *sub)
	}
	return order, nil
}

// queryOrders loads the orders of query and their sub-orders with one more query.
func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		byID[order.ID] = order
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
	}
	subs, err := r.querySubOrders(ctx,
		`SELECT `+subOrderSelectColumns+` FROM sub_orders WHERE order_id = ANY($1::uuid[]) ORDER BY supplier_id`,
		pq.StringArray(ids))
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		order := byID[sub.OrderID]
		order.SubOrders = append(order.SubOrders, *sub)
	}
	return orders, nil
}

func (r *PostgresRepository) querySubOrders(ctx context.Context, query string, args ...any) ([]*domain.SubOrder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sub-orders: %w", err)
	}
	defer rows.Close()

	var subs []*domain.SubOrder
	for rows.Next() {
		sub, err := scanSubOrder(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return subs, nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var key sql.NullString
	var contactJSON []byte
	var announcedAt sql.NullTime
	if err := row.Scan(&order.ID, &order.BuyerID, &key, &contactJSON, &order.CreatedAt, &announcedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order row: %w", err)
	}
	order.IdempotencyKey = key.String
	order.Announced = announcedAt.Valid
	if len(contactJSON) > 0 {
		order.Contact = &domain.Contact{}
		if err := json.Unmarshal(contactJSON, order.Contact); err != nil {
			return nil, fmt.Errorf("unmarshal contact: %w", err)
		}
	}
	return &order, nil
}

func scanSubOrder(row scanner) (*domain.SubOrder, error) {
	var sub domain.SubOrder
	var itemsJSON []byte
	var previous, announced sql.NullString
	if err := row.Scan(
		&sub.ID,
		&sub.OrderID,
		&sub.SupplierID,
		&sub.BuyerID,
		&itemsJSON,
		&sub.Status,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&previous,
		&announced,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan sub-order row: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &sub.Items); err != nil {
		return nil, fmt.Errorf("unmarshal sub-order items: %w", err)
	}
	sub.PreviousStatus = domain.Status(previous.String)
	sub.AnnouncedStatus = domain.Status(announced.String)
	return &sub, nil
}
