package service

import (
	"context"
	"encoding/json"
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
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers  = 4
	defaultCurrency = "USD"
	idempotencyName = "checkout"
)

// CartStore is the part of the cart service checkout depends on.
type CartStore interface {
	Snapshot(ctx context.Context, buyerID string) (*d.Cart, error)
	Consume(ctx context.Context, buyerID string, lines ...d.CartItem) (*d.Cart, error)
}

type CheckoutConfig struct {
	// Workers bounds how many seller groups are processed at once.
	Workers  int
	Currency string
}

type CheckoutService struct {
	carts    CartStore
	products repository.ProductStore
	orders   repository.OrderStore
	notifier OrderNotifier
	idem     cache.IdempotencyStore
	cfg      CheckoutConfig
	log      *slog.Logger
}

// NewCheckoutService wires the orchestrator. idem may be nil, which disables
// idempotency keys.
func NewCheckoutService(
	carts CartStore,
	products repository.ProductStore,
	orders repository.OrderStore,
	notifier OrderNotifier,
	idem cache.IdempotencyStore,
	cfg CheckoutConfig,
	log *slog.Logger) *CheckoutService {

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return &CheckoutService{
		carts:    carts,
		products: products,
		orders:   orders,
		notifier: notifier,
		idem:     idem,
		cfg:      cfg,
		log:      log,
	}
}

// Checkout splits the buyer's cart into one order per seller. Validation and
// store outages return an error before any order is attempted; per-seller
// failures are reported in the result instead.
func (s *CheckoutService) Checkout(ctx context.Context, req d.CheckoutRequest) (*d.CheckoutResult, error) {
	if req.IdempotencyKey == "" || s.idem == nil {
		return s.checkout(ctx, req)
	}

	scope := idempotencyName + ":" + req.BuyerID
	if prev, ok := s.recall(ctx, scope, req.IdempotencyKey); ok {
		metrics.CheckoutsTotal.WithLabelValues("replayed").Inc()
		return prev, nil
	}

	locked, err := s.idem.TryLock(ctx, scope, req.IdempotencyKey)
	if err != nil {
		// Redis being down must not block buying.
		s.log.WarnContext(ctx, "idempotency lock failed, continuing without it", "error", err)
		return s.checkout(ctx, req)
	}
	if !locked {
		// the holder may have finished between recall and lock
		if prev, ok := s.recall(ctx, scope, req.IdempotencyKey); ok {
			return prev, nil
		}
		return nil, d.ErrCheckoutInProgress
	}

	result, err := s.checkout(ctx, req)
	detached := context.WithoutCancel(ctx)
	if err != nil || !replayable(result) {
		if errRel := s.idem.Release(detached, scope, req.IdempotencyKey); errRel != nil {
			s.log.WarnContext(ctx, "idempotency release failed", "error", errRel)
		}
		return result, err
	}

	if raw, errJSON := json.Marshal(result); errJSON == nil {
		if errRem := s.idem.Remember(detached, scope, req.IdempotencyKey, string(raw)); errRem != nil {
			s.log.WarnContext(ctx, "idempotency remember failed", "error", errRem)
		}
	}
	return result, nil
}

// replayable reports whether a result must be returned for later requests
// with the same key. A partial result whose placed items left the cart is
// not: a retry only re-runs the groups still in the cart. When clearing
// failed the placed items are still there and a retry would order them twice.
func replayable(result *d.CheckoutResult) bool {
	if result.OverallSuccess {
		return true
	}
	return result.Placed() > 0 && !result.CartCleared
}

func (s *CheckoutService) recall(ctx context.Context, scope, key string) (*d.CheckoutResult, bool) {
	raw, found, err := s.idem.Recall(ctx, scope, key)
	if err != nil {
		s.log.WarnContext(ctx, "idempotency recall failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var prev d.CheckoutResult
	if err := json.Unmarshal([]byte(raw), &prev); err != nil {
		s.log.WarnContext(ctx, "stored checkout result unreadable", "error", err)
		return nil, false
	}
	return &prev, true
}

func (s *CheckoutService) checkout(ctx context.Context, req d.CheckoutRequest) (*d.CheckoutResult, error) {
	start := time.Now()
	log := s.log.With("buyer_id", req.BuyerID)

	groups, total, err := s.prepare(ctx, req.BuyerID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(rejectionOutcome(err)).Inc()
		log.WarnContext(ctx, "checkout rejected", "error", err)
		return nil, err
	}

	result := &d.CheckoutResult{
		CheckoutID: uuid.NewString(),
		Groups:     make([]d.GroupResult, len(groups)),
		CartTotal:  total,
		Currency:   s.cfg.Currency,
	}
	log = log.With("checkout_id", result.CheckoutID)

	for i, g := range groups {
		result.Groups[i] = d.GroupResult{
			SellerID:   g.SellerID,
			Status:     d.GroupStatusNotAttempted,
			GroupTotal: g.GroupTotal,
			ItemIDs:    g.ItemIDs(),
		}
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Workers)
	for i := range groups {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.placeGroup(ctx, log, req, result.CheckoutID, groups[i], &result.Groups[i])
			return nil
		})
	}
	_ = eg.Wait()

	// only the snapshot quantities are taken off the cart
	var persisted []d.CartItem
	result.OverallSuccess = true
	for i, g := range result.Groups {
		metrics.SellerGroups.WithLabelValues(g.Status.String()).Inc()
		if !g.Status.Persisted() {
			result.OverallSuccess = false
			continue
		}
		for _, line := range groups[i].Lines {
			persisted = append(persisted, line.Item)
		}
	}

	if len(persisted) > 0 {
		if _, err := s.carts.Consume(context.WithoutCancel(ctx), req.BuyerID, persisted...); err != nil {
			log.ErrorContext(ctx, "failed to clear checked out items", "error", err, "items", len(persisted))
		} else {
			result.CartCleared = true
		}
	}

	outcome := "success"
	switch {
	case result.Placed() == 0:
		outcome = "failed"
	case !result.OverallSuccess:
		outcome = "partial"
	}
	metrics.CheckoutsTotal.WithLabelValues(outcome).Inc()
	metrics.CheckoutDuration.Observe(float64(time.Since(start).Milliseconds()))

	log.InfoContext(ctx, "checkout finished",
		"summary", result.Summary(),
		"overall_success", result.OverallSuccess,
		"cart_total", result.CartTotal)
	return result, nil
}

// prepare reads the cart once and returns its seller groups and total.
func (s *CheckoutService) prepare(ctx context.Context, buyerID string) ([]d.SellerGroup, int64, error) {
	cart, err := s.carts.Snapshot(ctx, buyerID)
	if err != nil {
		if errors.Is(err, d.ErrCartUnavailable) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", d.ErrCartUnavailable, err)
	}
	if len(cart.Items) == 0 {
		return nil, 0, d.ErrEmptyCart
	}

	products, err := loadProducts(ctx, s.products, cart.Items)
	if err != nil {
		return nil, 0, err
	}

	agg, err := pricing.Aggregate(cart.Items, products)
	if err != nil {
		return nil, 0, err
	}

	groups := pricing.GroupBySeller(agg.Lines)
	if len(groups) == 0 {
		return nil, 0, d.ErrEmptyCart
	}
	return groups, agg.Total, nil
}

func (s *CheckoutService) placeGroup(
	ctx context.Context,
	log *slog.Logger,
	req d.CheckoutRequest,
	checkoutID string,
	group d.SellerGroup,
	out *d.GroupResult) {

	log = log.With("seller_id", group.SellerID)
	order := buildOrder(req, checkoutID, s.cfg.Currency, group)

	orderID, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		out.Status = d.GroupStatusPersistFailed
		out.Error = err.Error()
		log.ErrorContext(ctx, "order persist failed", "error", err)
		return
	}
	out.OrderID = orderID
	order.ID = orderID

	// the order is committed; a cancelled request must not stop the notification
	if err := s.notifier.Notify(context.WithoutCancel(ctx), order, group.SellerContact); err != nil {
		out.Status = d.GroupStatusNotifiedFailed
		out.Error = err.Error()
		log.ErrorContext(ctx, "seller notification failed",
			"alert", "seller_notification",
			"order_id", orderID,
			"seller_contact", group.SellerContact,
			"error", err)
		return
	}

	out.Status = d.GroupStatusOK
}

// buildOrder copies every value it needs out of the group so the order never
// aliases cart lines or catalog records.
func buildOrder(req d.CheckoutRequest, checkoutID, currency string, group d.SellerGroup) *d.Order {
	items := make([]d.OrderItem, len(group.Lines))
	for i, line := range group.Lines {
		items[i] = d.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Item.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		}
	}
	return &d.Order{
		CheckoutID:       checkoutID,
		BuyerID:          req.BuyerID,
		SellerID:         group.SellerID,
		Items:            items,
		TotalAmount:      group.GroupTotal,
		Currency:         currency,
		Status:           d.OrderStatusPending,
		BuyerContactInfo: req.BuyerInfo,
		DeliveryAddress:  req.DeliveryAddress,
	}
}

func rejectionOutcome(err error) string {
	if errors.Is(err, d.ErrCartUnavailable) || errors.Is(err, d.ErrCatalogUnavailable) {
		return "error"
	}
	return "rejected"
}
