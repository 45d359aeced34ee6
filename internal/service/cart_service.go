package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/marketplace-checkout/internal/cache"
	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/metrics"
	"github.com/fjod/go_cart/marketplace-checkout/internal/pricing"
	"github.com/fjod/go_cart/marketplace-checkout/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const sharedLoadTimeout = 5 * time.Second

// CartService is the only writer of buyer carts. Every operation returns a
// snapshot the caller owns.
type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products repository.ProductStore
	sfg      singleflight.Group // collapses concurrent cache misses per buyer
	log      *slog.Logger
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, products repository.ProductStore, log *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    cache,
		products: products,
		log:      log,
	}
}

// CartView is a cart priced against the current catalog.
type CartView struct {
	Cart   *d.Cart
	Lines  []d.CartLine
	Groups []d.SellerGroup
	Total  int64
}

func (s *CartService) GetCart(ctx context.Context, buyerID string) (*d.Cart, error) {
	v, err, _ := s.sfg.Do(buyerID, func() (interface{}, error) {
		// shared by every waiter, so the leader's cancellation must not fail them
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		cart, err := s.cache.Get(ctx, buyerID)
		if err == nil {
			metrics.CartCache.WithLabelValues("hit").Inc()
			return cart, nil
		}
		metrics.CartCache.WithLabelValues("miss").Inc()

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "buyer_id", buyerID, "error", err)
		}

		cart, err = s.load(ctx, buyerID)
		if err != nil {
			return nil, err
		}

		go func(c *d.Cart) {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, buyerID, c); errSet != nil {
				s.log.Warn("cache set error", "buyer_id", buyerID, "error", errSet)
			}
		}(cart.Clone())

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*d.Cart).Clone(), nil
}

// Snapshot reads the cart straight from the store, bypassing the cache.
// Checkout uses it so orders are never built from a stale copy.
func (s *CartService) Snapshot(ctx context.Context, buyerID string) (*d.Cart, error) {
	return s.load(ctx, buyerID)
}

// View prices the cart and groups its lines by seller.
func (s *CartService) View(ctx context.Context, buyerID string) (*CartView, error) {
	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	agg, err := pricing.Aggregate(cart.Items, products)
	if err != nil {
		return nil, err
	}

	return &CartView{
		Cart:   cart,
		Lines:  agg.Lines,
		Groups: pricing.GroupBySeller(agg.Lines),
		Total:  agg.Total,
	}, nil
}

// AddItem adds qty of a product. A product already in the cart has its line
// incremented instead of getting a second line.
func (s *CartService) AddItem(ctx context.Context, buyerID string, productID int64, qty int) (*d.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity %d must be at least 1", d.ErrInvalidQuantity, qty)
	}

	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	existing := -1
	for i, item := range cart.Items {
		if item.ProductID == productID {
			existing = i
			break
		}
	}

	if existing >= 0 {
		item := cart.Items[existing]
		newQty := item.Quantity + qty
		if err := validateQuantity(newQty, product); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateItemQuantity(ctx, buyerID, item.ID, newQty); err != nil {
			return nil, s.storeErr(ctx, "update item quantity", err)
		}
	} else {
		if err := validateQuantity(qty, product); err != nil {
			return nil, err
		}
		item := d.CartItem{
			ID:        uuid.NewString(),
			ProductID: productID,
			Quantity:  qty,
			AddedAt:   time.Now().UTC(),
		}
		if err := s.repo.AddItem(ctx, buyerID, item); err != nil {
			return nil, s.storeErr(ctx, "add item", err)
		}
	}

	s.invalidateCache(buyerID)
	return s.load(ctx, buyerID)
}

// SetQuantity replaces the quantity of one line. On rejection the stored
// quantity is left as it was.
func (s *CartService) SetQuantity(ctx context.Context, buyerID, itemID string, qty int) (*d.Cart, error) {
	cart, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, d.ErrItemNotFound)
	}

	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity %d must be at least 1", d.ErrInvalidQuantity, qty)
	}

	product, err := s.product(ctx, cart.Items[idx].ProductID)
	if err != nil {
		return nil, err
	}
	if err := validateQuantity(qty, product); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItemQuantity(ctx, buyerID, itemID, qty); err != nil {
		if errors.Is(err, d.ErrItemNotFound) {
			return nil, fmt.Errorf("item %s: %w", itemID, d.ErrItemNotFound)
		}
		return nil, s.storeErr(ctx, "update item quantity", err)
	}

	s.invalidateCache(buyerID)
	return s.load(ctx, buyerID)
}

func (s *CartService) RemoveItem(ctx context.Context, buyerID, itemID string) (*d.Cart, error) {
	cart, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if cart.FindItem(itemID) < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, d.ErrItemNotFound)
	}

	if err := s.repo.RemoveItems(ctx, buyerID, itemID); err != nil {
		return nil, s.storeErr(ctx, "remove item", err)
	}

	s.invalidateCache(buyerID)
	return s.load(ctx, buyerID)
}

// Clear removes the given items, or the whole cart when no ids are given.
// Unknown ids are ignored.
func (s *CartService) Clear(ctx context.Context, buyerID string, itemIDs ...string) (*d.Cart, error) {
	var err error
	if len(itemIDs) == 0 {
		err = s.repo.DeleteCart(ctx, buyerID)
	} else {
		err = s.repo.RemoveItems(ctx, buyerID, itemIDs...)
	}
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, s.storeErr(ctx, "clear cart", err)
	}

	s.invalidateCache(buyerID)
	return s.load(ctx, buyerID)
}

// Consume takes checked out quantities off the cart. Units added to a line
// after the snapshot was taken stay in the cart.
func (s *CartService) Consume(ctx context.Context, buyerID string, lines ...d.CartItem) (*d.Cart, error) {
	if len(lines) == 0 {
		return s.load(ctx, buyerID)
	}
	err := s.repo.ConsumeItems(ctx, buyerID, lines...)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, s.storeErr(ctx, "consume items", err)
	}

	s.invalidateCache(buyerID)
	return s.load(ctx, buyerID)
}

func (s *CartService) load(ctx context.Context, buyerID string) (*d.Cart, error) {
	cart, err := s.repo.GetCart(ctx, buyerID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := time.Now().UTC()
		return &d.Cart{
			BuyerID:   buyerID,
			Items:     []d.CartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, s.storeErr(ctx, "get cart", err)
	}
	if cart.Items == nil {
		cart.Items = []d.CartItem{}
	}
	return cart, nil
}

func (s *CartService) product(ctx context.Context, productID int64) (*d.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, d.ErrProductNotFound) || errors.Is(err, d.ErrInvalidProductPrice) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", d.ErrCatalogUnavailable, err)
	}
	return p, nil
}

func (s *CartService) loadProducts(ctx context.Context, items []d.CartItem) (map[int64]d.Product, error) {
	return loadProducts(ctx, s.products, items)
}

func (s *CartService) storeErr(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "cart store error", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", d.ErrCartUnavailable, op, err)
}

func (s *CartService) invalidateCache(buyerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		s.log.Warn("cache invalidate error", "buyer_id", buyerID, "error", err)
	}
}

func validateQuantity(qty int, p *d.Product) error {
	if qty < 1 || qty > p.StockQuantity {
		return fmt.Errorf("%w: quantity %d outside [1, %d] for product %d",
			d.ErrInvalidQuantity, qty, p.StockQuantity, p.ID)
	}
	return nil
}

// loadProducts fetches the distinct products referenced by items.
func loadProducts(ctx context.Context, store repository.ProductStore, items []d.CartItem) (map[int64]d.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := store.GetProducts(ctx, ids)
	if err != nil {
		if errors.Is(err, d.ErrInvalidProductPrice) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", d.ErrCatalogUnavailable, err)
	}
	return products, nil
}
