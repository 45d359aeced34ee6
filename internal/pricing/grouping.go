package pricing

import d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"

// GroupBySeller partitions lines by seller. Groups appear in the order their
// seller was first seen; lines inside a group keep cart order.
func GroupBySeller(lines []d.CartLine) []d.SellerGroup {
	groups := make([]d.SellerGroup, 0)
	index := make(map[string]int)
	for _, line := range lines {
		i, ok := index[line.Product.SellerID]
		if !ok {
			i = len(groups)
			index[line.Product.SellerID] = i
			groups = append(groups, d.SellerGroup{
				SellerID:      line.Product.SellerID,
				SellerContact: line.Product.SellerContact,
			})
		}
		groups[i].Lines = append(groups[i].Lines, line)
		groups[i].GroupTotal += line.LineTotal
	}
	return groups
}
