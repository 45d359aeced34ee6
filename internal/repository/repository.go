package repository

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, buyerID string) (*d.Cart, error)
	AddItem(ctx context.Context, buyerID string, item d.CartItem) error
	UpdateItemQuantity(ctx context.Context, buyerID, itemID string, quantity int) error
	RemoveItems(ctx context.Context, buyerID string, itemIDs ...string) error
	ConsumeItems(ctx context.Context, buyerID string, lines ...d.CartItem) error
	DeleteCart(ctx context.Context, buyerID string) error
}

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*d.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]d.Product, error)
}

// OrderStore persists orders. CreateOrder decrements stock for every item in
// the same transaction as the insert and fails with d.ErrInsufficientStock
// when any product cannot cover its quantity.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *d.Order) (string, error)
	GetOrder(ctx context.Context, id string) (*d.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*d.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]*d.Order, error)
	UpdateOrderStatus(ctx context.Context, id, sellerID string, to d.OrderStatus) (*d.Order, error)
}
