package publisher

import (
	"context"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

// Notifier dispatches an order summary to a seller's contact channel.
// Delivery is at most once; callers never retry.
type Notifier interface {
	Send(ctx context.Context, sellerContact string, summary OrderSummary) error
}

// OrderSummary is the informational payload sent to a seller.
type OrderSummary struct {
	OrderID         string        `json:"order_id"`
	CheckoutID      string        `json:"checkout_id"`
	SellerID        string        `json:"seller_id"`
	SellerContact   string        `json:"seller_contact"`
	BuyerID         string        `json:"buyer_id"`
	Buyer           d.BuyerInfo   `json:"buyer"`
	DeliveryAddress d.Address     `json:"delivery_address"`
	Items           []d.OrderItem `json:"items"`
	TotalAmount     int64         `json:"total_amount"`
	Currency        string        `json:"currency"`
	// DisplayTotal is TotalAmount rendered in major units, e.g. "12.00".
	DisplayTotal string    `json:"display_total"`
	PlacedAt     time.Time `json:"placed_at"`
}
