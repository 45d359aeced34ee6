package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	BuyerID   string     `bson:"buyer_id" json:"buyer_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ID        string    `bson:"id" json:"id"`
	ProductID int64     `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Clone returns a deep copy so callers never share the items slice.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	return &cp
}

// FindItem returns the index of the item with the given id, or -1.
func (c *Cart) FindItem(itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// CartLine is a cart item with its resolved price. Derived, never stored.
type CartLine struct {
	Item      CartItem
	Product   Product
	UnitPrice int64
	LineTotal int64
}

// SellerGroup holds the lines of one seller in cart order.
type SellerGroup struct {
	SellerID      string
	SellerContact string
	Lines         []CartLine
	GroupTotal    int64
}

func (g SellerGroup) ItemIDs() []string {
	ids := make([]string, len(g.Lines))
	for i, l := range g.Lines {
		ids[i] = l.Item.ID
	}
	return ids
}
