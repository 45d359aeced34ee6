package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/service"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "marketplace-test"
)

type CartMock struct {
	view    *service.CartView
	cart    *d.Cart
	err     error
	cleared []string
	lastQty int
}

func (c *CartMock) View(ctx context.Context, buyerID string) (*service.CartView, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.view, nil
}

func (c *CartMock) AddItem(ctx context.Context, buyerID string, productID int64, qty int) (*d.Cart, error) {
	c.lastQty = qty
	if c.err != nil {
		return nil, c.err
	}
	return c.cart, nil
}

func (c *CartMock) SetQuantity(ctx context.Context, buyerID, itemID string, qty int) (*d.Cart, error) {
	c.lastQty = qty
	if c.err != nil {
		return nil, c.err
	}
	return c.cart, nil
}

func (c *CartMock) RemoveItem(ctx context.Context, buyerID, itemID string) (*d.Cart, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.cart, nil
}

func (c *CartMock) Clear(ctx context.Context, buyerID string, itemIDs ...string) (*d.Cart, error) {
	c.cleared = itemIDs
	if c.err != nil {
		return nil, c.err
	}
	return c.cart, nil
}

type CheckoutMock struct {
	result *d.CheckoutResult
	err    error
	got    d.CheckoutRequest
}

func (c *CheckoutMock) Checkout(ctx context.Context, req d.CheckoutRequest) (*d.CheckoutResult, error) {
	c.got = req
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type OrdersMock struct {
	orders     []*d.Order
	err        error
	sellerSeen string
}

func (o *OrdersMock) ListForBuyer(ctx context.Context, buyerID string) ([]*d.Order, error) {
	return o.orders, o.err
}

func (o *OrdersMock) GetForBuyer(ctx context.Context, buyerID, orderID string) (*d.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	for _, order := range o.orders {
		if order.ID == orderID && order.BuyerID == buyerID {
			return order, nil
		}
	}
	return nil, d.ErrOrderNotFound
}

func (o *OrdersMock) ListForSeller(ctx context.Context, sellerID string) ([]*d.Order, error) {
	o.sellerSeen = sellerID
	return o.orders, o.err
}

func (o *OrdersMock) UpdateStatus(ctx context.Context, sellerID, orderID string, to d.OrderStatus) (*d.Order, error) {
	o.sellerSeen = sellerID
	if o.err != nil {
		return nil, o.err
	}
	for _, order := range o.orders {
		if order.ID == orderID {
			cp := *order
			cp.Status = to
			return &cp, nil
		}
	}
	return nil, d.ErrOrderNotFound
}

type testAPI struct {
	handler  http.Handler
	auth     *Authenticator
	carts    *CartMock
	checkout *CheckoutMock
	orders   *OrdersMock
}

func newTestAPI() *testAPI {
	api := &testAPI{
		auth:     NewAuthenticator(testSecret, testIssuer),
		carts:    &CartMock{},
		checkout: &CheckoutMock{},
		orders:   &OrdersMock{},
	}
	api.handler = NewRouter(RouterConfig{
		Carts:          api.carts,
		Checkout:       api.checkout,
		Orders:         api.orders,
		Auth:           api.auth,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Currency:       "USD",
		RequestTimeout: 5 * time.Second,
	})
	return api
}

func (a *testAPI) token(t *testing.T, buyerID, sellerID string) string {
	t.Helper()
	tok, err := a.auth.IssueToken(buyerID, sellerID, time.Hour)
	require.NoError(t, err)
	return tok
}
