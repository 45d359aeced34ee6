package service

import (
	"context"
	"fmt"
	"log/slog"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/repository"
)

// OrderService exposes persisted orders to buyers and lets sellers move their
// own orders through the status lifecycle.
type OrderService struct {
	orders repository.OrderStore
	log    *slog.Logger
}

func NewOrderService(orders repository.OrderStore, log *slog.Logger) *OrderService {
	return &OrderService{orders: orders, log: log}
}

func (s *OrderService) ListForBuyer(ctx context.Context, buyerID string) ([]*d.Order, error) {
	return s.orders.ListOrdersByBuyer(ctx, buyerID)
}

// GetForBuyer hides orders of other buyers behind ErrOrderNotFound.
func (s *OrderService) GetForBuyer(ctx context.Context, buyerID, orderID string) (*d.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, d.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListForSeller(ctx context.Context, sellerID string) ([]*d.Order, error) {
	return s.orders.ListOrdersBySeller(ctx, sellerID)
}

func (s *OrderService) UpdateStatus(ctx context.Context, sellerID, orderID string, to d.OrderStatus) (*d.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", to, d.ErrIllegalTransition)
	}

	order, err := s.orders.UpdateOrderStatus(ctx, orderID, sellerID, to)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status changed",
		"order_id", orderID,
		"seller_id", sellerID,
		"status", order.Status)
	return order, nil
}
