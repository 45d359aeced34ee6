package pricing

import (
	"testing"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func exampleCatalog() map[int64]d.Product {
	return map[int64]d.Product{
		1: {ID: 1, Name: "Lamp", Price: 1000, StockQuantity: 10, SellerID: "S1", SellerContact: "s1@example.com"},
		2: {ID: 2, Name: "Mug", Price: 500, DiscountPrice: ptr(400), StockQuantity: 10, SellerID: "S2", SellerContact: "s2@example.com"},
		3: {ID: 3, Name: "Rug", Price: 2500, StockQuantity: 10, SellerID: "S1", SellerContact: "s1@example.com"},
	}
}

func TestResolveUnitPrice(t *testing.T) {
	tests := []struct {
		name    string
		product d.Product
		want    int64
		wantErr error
	}{
		{name: "list price", product: d.Product{Price: 1000}, want: 1000},
		{name: "valid discount", product: d.Product{Price: 500, DiscountPrice: ptr(400)}, want: 400},
		{name: "discount equal to price ignored", product: d.Product{Price: 500, DiscountPrice: ptr(500)}, want: 500},
		{name: "discount above price ignored", product: d.Product{Price: 500, DiscountPrice: ptr(700)}, want: 500},
		{name: "zero discount ignored", product: d.Product{Price: 500, DiscountPrice: ptr(0)}, want: 500},
		{name: "free product", product: d.Product{Price: 0}, want: 0},
		{name: "negative price", product: d.Product{Price: -1}, wantErr: d.ErrInvalidProductPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveUnitPrice(tt.product)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregate_Example(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 1, Quantity: 2},
		{ID: "b", ProductID: 2, Quantity: 3},
	}

	agg, err := Aggregate(items, exampleCatalog())
	require.NoError(t, err)
	require.Len(t, agg.Lines, 2)
	assert.Equal(t, int64(2000), agg.Lines[0].LineTotal)
	assert.Equal(t, int64(400), agg.Lines[1].UnitPrice)
	assert.Equal(t, int64(1200), agg.Lines[1].LineTotal)
	assert.Equal(t, int64(3200), agg.Total)
}

func TestAggregate_Idempotent(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 1, Quantity: 2},
		{ID: "b", ProductID: 2, Quantity: 3},
		{ID: "c", ProductID: 3, Quantity: 1},
	}
	catalog := exampleCatalog()

	first, err := Aggregate(items, catalog)
	require.NoError(t, err)
	second, err := Aggregate(items, catalog)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, items[0].Quantity, "input must not be mutated")
}

func TestAggregate_MissingProduct(t *testing.T) {
	_, err := Aggregate([]d.CartItem{{ID: "x", ProductID: 99, Quantity: 1}}, exampleCatalog())
	assert.ErrorIs(t, err, d.ErrProductNotFound)
}

func TestAggregate_InvalidPrice(t *testing.T) {
	catalog := map[int64]d.Product{7: {ID: 7, Price: -5, SellerID: "S"}}
	_, err := Aggregate([]d.CartItem{{ID: "x", ProductID: 7, Quantity: 1}}, catalog)
	assert.ErrorIs(t, err, d.ErrInvalidProductPrice)
}

func TestAggregate_RemovingItemReducesTotalByLineTotal(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 1, Quantity: 2},
		{ID: "b", ProductID: 2, Quantity: 3},
		{ID: "c", ProductID: 3, Quantity: 1},
	}
	catalog := exampleCatalog()

	before, err := Aggregate(items, catalog)
	require.NoError(t, err)

	for i := range items {
		rest := append(append([]d.CartItem{}, items[:i]...), items[i+1:]...)
		after, err := Aggregate(rest, catalog)
		require.NoError(t, err)
		assert.Equal(t, before.Total-before.Lines[i].LineTotal, after.Total)
	}
}

func TestGroupBySeller_Example(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 1, Quantity: 2},
		{ID: "b", ProductID: 2, Quantity: 3},
	}
	agg, err := Aggregate(items, exampleCatalog())
	require.NoError(t, err)

	groups := GroupBySeller(agg.Lines)
	require.Len(t, groups, 2)
	assert.Equal(t, "S1", groups[0].SellerID)
	assert.Equal(t, int64(2000), groups[0].GroupTotal)
	assert.Equal(t, "S2", groups[1].SellerID)
	assert.Equal(t, int64(1200), groups[1].GroupTotal)
	assert.Equal(t, "s2@example.com", groups[1].SellerContact)
}

func TestGroupBySeller_StableFirstSeenOrder(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 2, Quantity: 1},
		{ID: "b", ProductID: 1, Quantity: 1},
		{ID: "c", ProductID: 3, Quantity: 1},
	}
	agg, err := Aggregate(items, exampleCatalog())
	require.NoError(t, err)

	groups := GroupBySeller(agg.Lines)
	require.Len(t, groups, 2)
	assert.Equal(t, "S2", groups[0].SellerID)
	assert.Equal(t, "S1", groups[1].SellerID)
	assert.Equal(t, []string{"b", "c"}, groups[1].ItemIDs())
	for _, g := range groups {
		for _, l := range g.Lines {
			assert.Equal(t, g.SellerID, l.Product.SellerID)
		}
	}
}

func TestGroupBySeller_PreservesTotal(t *testing.T) {
	items := []d.CartItem{
		{ID: "a", ProductID: 1, Quantity: 4},
		{ID: "b", ProductID: 2, Quantity: 7},
		{ID: "c", ProductID: 3, Quantity: 2},
	}
	agg, err := Aggregate(items, exampleCatalog())
	require.NoError(t, err)

	var sum int64
	for _, g := range GroupBySeller(agg.Lines) {
		var lines int64
		for _, l := range g.Lines {
			lines += l.LineTotal
		}
		assert.Equal(t, lines, g.GroupTotal)
		sum += g.GroupTotal
	}
	assert.Equal(t, agg.Total, sum)
}

func TestGroupBySeller_Empty(t *testing.T) {
	assert.Empty(t, GroupBySeller(nil))
}
