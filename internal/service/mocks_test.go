package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/marketplace-checkout/internal/cache"
	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/repository"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockCartRepository struct {
	m     sync.Mutex
	carts map[string]*d.Cart
	err   error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: map[string]*d.Cart{}}
}

func (m *mockCartRepository) GetCart(ctx context.Context, buyerID string) (*d.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *mockCartRepository) AddItem(_ context.Context, buyerID string, item d.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		cart = &d.Cart{BuyerID: buyerID, CreatedAt: time.Now()}
		m.carts[buyerID] = cart
	}
	cart.Items = append(cart.Items, item)
	cart.UpdatedAt = time.Now()
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, buyerID, itemID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		return d.ErrItemNotFound
	}
	idx := cart.FindItem(itemID)
	if idx < 0 {
		return d.ErrItemNotFound
	}
	cart.Items[idx].Quantity = quantity
	return nil
}

func (m *mockCartRepository) RemoveItems(_ context.Context, buyerID string, itemIDs ...string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		return repository.ErrCartNotFound
	}
	drop := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = true
	}
	kept := cart.Items[:0:0]
	for _, item := range cart.Items {
		if !drop[item.ID] {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (m *mockCartRepository) ConsumeItems(_ context.Context, buyerID string, lines ...d.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for _, line := range lines {
		idx := cart.FindItem(line.ID)
		if idx < 0 {
			continue
		}
		if cart.Items[idx].Quantity <= line.Quantity {
			cart.Items = append(cart.Items[:idx:idx], cart.Items[idx+1:]...)
			continue
		}
		cart.Items[idx].Quantity -= line.Quantity
	}
	return nil
}

func (m *mockCartRepository) DeleteCart(_ context.Context, buyerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[buyerID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, buyerID)
	return nil
}

func (m *mockCartRepository) setErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.err = err
}

func (m *mockCartRepository) items(buyerID string) []d.CartItem {
	m.m.Lock()
	defer m.m.Unlock()
	cart, ok := m.carts[buyerID]
	if !ok {
		return nil
	}
	return append([]d.CartItem(nil), cart.Items...)
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*d.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*d.Cart{}}
}

func (m *mockCache) Get(_ context.Context, buyerID string) (*d.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[buyerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCache) Set(_ context.Context, buyerID string, cart *d.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[buyerID] = cart.Clone()
	return m.err
}

func (m *mockCache) Delete(_ context.Context, buyerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, buyerID)
	return m.err
}

func (m *mockCache) cached(buyerID string) *d.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[buyerID]
}

type mockProductStore struct {
	m        sync.Mutex
	products map[int64]d.Product
	err      error
}

func newMockProductStore(products ...d.Product) *mockProductStore {
	s := &mockProductStore{products: map[int64]d.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (m *mockProductStore) GetProduct(_ context.Context, id int64) (*d.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, d.ErrProductNotFound)
	}
	return &p, nil
}

func (m *mockProductStore) GetProducts(_ context.Context, ids []int64) (map[int64]d.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]d.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockProductStore) setPrice(id, price int64) {
	m.m.Lock()
	defer m.m.Unlock()
	p := m.products[id]
	p.Price = price
	m.products[id] = p
}

type mockOrderStore struct {
	m       sync.Mutex
	orders  []*d.Order
	failFor map[string]error
	delay   map[string]time.Duration
	// onCreate runs before an order is stored
	onCreate func(order *d.Order)

	active    int
	maxActive int
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{failFor: map[string]error{}, delay: map[string]time.Duration{}}
}

func (m *mockOrderStore) CreateOrder(_ context.Context, order *d.Order) (string, error) {
	m.m.Lock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	delay := m.delay[order.SellerID]
	failErr := m.failFor[order.SellerID]
	hook := m.onCreate
	m.m.Unlock()

	defer func() {
		m.m.Lock()
		m.active--
		m.m.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hook != nil {
		hook(order)
	}
	if failErr != nil {
		return "", failErr
	}

	stored := *order
	stored.ID = uuid.NewString()
	stored.Items = append([]d.OrderItem(nil), order.Items...)

	m.m.Lock()
	defer m.m.Unlock()
	m.orders = append(m.orders, &stored)
	return stored.ID, nil
}

func (m *mockOrderStore) GetOrder(_ context.Context, id string) (*d.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, d.ErrOrderNotFound
}

func (m *mockOrderStore) ListOrdersByBuyer(_ context.Context, buyerID string) ([]*d.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*d.Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderStore) ListOrdersBySeller(_ context.Context, sellerID string) ([]*d.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*d.Order
	for _, o := range m.orders {
		if o.SellerID == sellerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderStore) UpdateOrderStatus(_ context.Context, id, sellerID string, to d.OrderStatus) (*d.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.orders {
		if o.ID != id || o.SellerID != sellerID {
			continue
		}
		if !d.CanTransitionTo(o.Status, to) {
			return nil, d.ErrIllegalTransition
		}
		o.Status = to
		cp := *o
		return &cp, nil
	}
	return nil, d.ErrOrderNotFound
}

func (m *mockOrderStore) snapshot() []*d.Order {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]*d.Order(nil), m.orders...)
}

type notifyCall struct {
	order   d.Order
	contact string
}

type mockNotifier struct {
	m       sync.Mutex
	calls   []notifyCall
	failFor map[string]error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{failFor: map[string]error{}}
}

func (m *mockNotifier) Notify(ctx context.Context, order *d.Order, sellerContact string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.calls = append(m.calls, notifyCall{order: *order, contact: sellerContact})
	return m.failFor[order.SellerID]
}

func (m *mockNotifier) callCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.calls)
}
