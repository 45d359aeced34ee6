package pricing

import (
	"fmt"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

type Aggregation struct {
	Lines []d.CartLine
	Total int64
}

// Aggregate prices every cart item against its product. Lines keep cart order.
func Aggregate(items []d.CartItem, products map[int64]d.Product) (Aggregation, error) {
	agg := Aggregation{Lines: make([]d.CartLine, 0, len(items))}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return Aggregation{}, fmt.Errorf("product %d: %w", item.ProductID, d.ErrProductNotFound)
		}
		unit, err := ResolveUnitPrice(product)
		if err != nil {
			return Aggregation{}, err
		}
		line := d.CartLine{
			Item:      item,
			Product:   product,
			UnitPrice: unit,
			LineTotal: unit * int64(item.Quantity),
		}
		agg.Lines = append(agg.Lines, line)
		agg.Total += line.LineTotal
	}
	return agg, nil
}
