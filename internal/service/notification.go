package service

import (
	"context"
	"fmt"
	"log/slog"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/metrics"
	"github.com/fjod/go_cart/marketplace-checkout/internal/pricing"
	"github.com/fjod/go_cart/marketplace-checkout/internal/publisher"
)

// OrderNotifier tells a seller about a persisted order.
type OrderNotifier interface {
	Notify(ctx context.Context, order *d.Order, sellerContact string) error
}

// NotificationSender turns an order into a seller summary and hands it to the
// configured transport. The order is only read.
type NotificationSender struct {
	notifier  publisher.Notifier
	transport string
	log       *slog.Logger
}

func NewNotificationSender(n publisher.Notifier, transport string, log *slog.Logger) *NotificationSender {
	return &NotificationSender{notifier: n, transport: transport, log: log}
}

func (s *NotificationSender) Notify(ctx context.Context, order *d.Order, sellerContact string) error {
	summary := publisher.OrderSummary{
		OrderID:         order.ID,
		CheckoutID:      order.CheckoutID,
		SellerID:        order.SellerID,
		BuyerID:         order.BuyerID,
		Buyer:           order.BuyerContactInfo,
		DeliveryAddress: order.DeliveryAddress,
		Items:           append([]d.OrderItem(nil), order.Items...),
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		DisplayTotal:    pricing.FormatMinor(order.TotalAmount),
		PlacedAt:        order.CreatedAt,
	}

	if err := s.notifier.Send(ctx, sellerContact, summary); err != nil {
		metrics.Notifications.WithLabelValues(s.transport, "failed").Inc()
		return fmt.Errorf("%w: %v", d.ErrNotifyFailed, err)
	}

	metrics.Notifications.WithLabelValues(s.transport, "sent").Inc()
	s.log.DebugContext(ctx, "seller notified", "order_id", order.ID, "seller_id", order.SellerID)
	return nil
}
