package domain

import "fmt"

type CheckoutRequest struct {
	BuyerID         string
	BuyerInfo       BuyerInfo
	DeliveryAddress Address
	IdempotencyKey  string
}

type GroupResult struct {
	SellerID   string      `json:"seller_id"`
	Status     GroupStatus `json:"status"`
	OrderID    string      `json:"order_id,omitempty"`
	GroupTotal int64       `json:"group_total"`
	ItemIDs    []string    `json:"item_ids"`
	Error      string      `json:"error,omitempty"`
}

type CheckoutResult struct {
	CheckoutID     string        `json:"checkout_id"`
	Groups         []GroupResult `json:"groups"`
	CartTotal      int64         `json:"cart_total"`
	Currency       string        `json:"currency"`
	OverallSuccess bool          `json:"overall_success"`
	CartCleared    bool          `json:"cart_cleared"`
}

// Placed counts groups whose order was persisted.
func (r *CheckoutResult) Placed() int {
	n := 0
	for _, g := range r.Groups {
		if g.Status.Persisted() {
			n++
		}
	}
	return n
}

func (r *CheckoutResult) Summary() string {
	return fmt.Sprintf("%d of %d seller orders placed", r.Placed(), len(r.Groups))
}
