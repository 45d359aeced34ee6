package domain

import "time"

// Product is the catalog view the checkout core reads. Prices are minor units.
type Product struct {
	ID            int64
	Name          string
	Price         int64
	DiscountPrice *int64
	StockQuantity int
	SellerID      string
	SellerContact string
	CreatedAt     time.Time
}
