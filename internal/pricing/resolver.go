package pricing

import (
	"fmt"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

// ResolveUnitPrice returns the discounted price when it is set and lies strictly
// between zero and the list price, otherwise the list price.
func ResolveUnitPrice(p d.Product) (int64, error) {
	if p.Price < 0 {
		return 0, fmt.Errorf("product %d: %w", p.ID, d.ErrInvalidProductPrice)
	}
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice, nil
	}
	return p.Price, nil
}
