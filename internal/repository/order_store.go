package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const orderColumns = `id, checkout_id, buyer_id, seller_id, items, total_amount, currency, status,
	buyer_contact, delivery_address, created_at, updated_at`

// CreateOrder persists the order and decrements stock for each item with a
// conditional update, all in one transaction.
func (s *SQLStore) CreateOrder(ctx context.Context, order *d.Order) (string, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = d.OrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order items: %w", err)
	}
	contactJSON, err := json.Marshal(order.BuyerContactInfo)
	if err != nil {
		return "", fmt.Errorf("failed to marshal buyer contact: %w", err)
	}
	addressJSON, err := json.Marshal(order.DeliveryAddress)
	if err != nil {
		return "", fmt.Errorf("failed to marshal delivery address: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, item := range order.Items {
		if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return "", err
		}
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.CheckoutID,
		order.BuyerID,
		order.SellerID,
		string(itemsJSON),
		order.TotalAmount,
		order.Currency,
		string(order.Status),
		string(contactJSON),
		string(addressJSON),
		order.CreatedAt,
		order.UpdatedAt)
	if insertErr != nil {
		if isUniqueViolation(insertErr) {
			return "", d.ErrDuplicateOrder
		}
		return "", fmt.Errorf("insert order: %w", insertErr)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit order: %w", err)
	}
	return order.ID, nil
}

func decrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, d.ErrInsufficientStock)
	}
	return nil
}

func restoreStock(ctx context.Context, tx *sql.Tx, items []d.OrderItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2`,
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanOrder(row rowScanner) (*d.Order, error) {
	var (
		order       d.Order
		status      string
		itemsJSON   []byte
		contactJSON []byte
		addressJSON []byte
	)
	if err := row.Scan(
		&order.ID,
		&order.CheckoutID,
		&order.BuyerID,
		&order.SellerID,
		&itemsJSON,
		&order.TotalAmount,
		&order.Currency,
		&status,
		&contactJSON,
		&addressJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = d.OrderStatus(status)

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(contactJSON, &order.BuyerContactInfo); err != nil {
		return nil, fmt.Errorf("unmarshal buyer contact: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("unmarshal delivery address: %w", err)
	}
	return &order, nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*d.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, d.ErrOrderNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (s *SQLStore) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*d.Order, error) {
	return s.listOrders(ctx, `buyer_id`, buyerID)
}

func (s *SQLStore) ListOrdersBySeller(ctx context.Context, sellerID string) ([]*d.Order, error) {
	return s.listOrders(ctx, `seller_id`, sellerID)
}

func (s *SQLStore) listOrders(ctx context.Context, column, value string) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("query orders by %s: %w", column, err)
	}
	defer rows.Close()

	orders := make([]*d.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus applies a seller-side transition as a compare-and-swap on
// the current status. Cancelling returns the items to stock.
func (s *SQLStore) UpdateOrderStatus(ctx context.Context, id, sellerID string, to d.OrderStatus) (*d.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, d.ErrOrderNotFound
	}
	if !d.CanTransitionTo(order.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, to, d.ErrIllegalTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND seller_id = $4 AND status = $5`,
		string(to), now, id, sellerID, string(order.Status))
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("order %s changed concurrently: %w", id, d.ErrIllegalTransition)
	}

	if to == d.OrderStatusCancelled {
		if err := restoreStock(ctx, tx, order.Items); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order status: %w", err)
	}

	order.Status = to
	order.UpdatedAt = now
	return order, nil
}
