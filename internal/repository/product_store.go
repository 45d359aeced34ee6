package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

const productColumns = `id, name, price, discount_price, stock_quantity, seller_id, seller_contact, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*d.Product, error) {
	var (
		p        d.Product
		price    sql.NullInt64
		discount sql.NullInt64
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&price,
		&discount,
		&p.StockQuantity,
		&p.SellerID,
		&p.SellerContact,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if !price.Valid {
		return nil, fmt.Errorf("product %d has no price: %w", p.ID, d.ErrInvalidProductPrice)
	}
	p.Price = price.Int64
	if discount.Valid {
		v := discount.Int64
		p.DiscountPrice = &v
	}
	return &p, nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id int64) (*d.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, d.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

// GetProducts loads all requested products in one query. Unknown ids are
// simply absent from the result.
func (s *SQLStore) GetProducts(ctx context.Context, ids []int64) (map[int64]d.Product, error) {
	products := make(map[int64]d.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// CreateProduct inserts a catalog entry. The catalog is owned elsewhere; this
// exists for seeding local databases and tests.
func (s *SQLStore) CreateProduct(ctx context.Context, p *d.Product) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO products (name, price, discount_price, stock_quantity, seller_id, seller_contact, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	var discount sql.NullInt64
	if p.DiscountPrice != nil {
		discount = sql.NullInt64{Int64: *p.DiscountPrice, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		p.Name,
		p.Price,
		discount,
		p.StockQuantity,
		p.SellerID,
		p.SellerContact,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return p.ID, nil
}
