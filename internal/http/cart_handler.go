package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/pricing"
	"github.com/fjod/go_cart/marketplace-checkout/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartUseCase interface {
	View(ctx context.Context, buyerID string) (*service.CartView, error)
	AddItem(ctx context.Context, buyerID string, productID int64, qty int) (*d.Cart, error)
	SetQuantity(ctx context.Context, buyerID, itemID string, qty int) (*d.Cart, error)
	RemoveItem(ctx context.Context, buyerID, itemID string) (*d.Cart, error)
	Clear(ctx context.Context, buyerID string, itemIDs ...string) (*d.Cart, error)
}

type CartHandler struct {
	carts    CartUseCase
	currency string
	timeout  time.Duration
}

func NewCartHandler(carts CartUseCase, currency string, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		currency: currency,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type ClearCartRequestDTO struct {
	ItemIDs []string `json:"item_ids" validate:"omitempty,dive,required"`
}

type CartLineDTO struct {
	ItemID    string `json:"item_id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SellerID  string `json:"seller_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type SellerGroupDTO struct {
	SellerID   string   `json:"seller_id"`
	ItemIDs    []string `json:"item_ids"`
	GroupTotal int64    `json:"group_total"`
}

type CartViewDTO struct {
	BuyerID      string           `json:"buyer_id"`
	Lines        []CartLineDTO    `json:"lines"`
	Groups       []SellerGroupDTO `json:"groups"`
	Total        int64            `json:"total"`
	DisplayTotal string           `json:"display_total"`
	Currency     string           `json:"currency"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	view, err := h.carts.View(ctx, buyerID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.toViewDTO(view))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, buyerID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.SetQuantity(ctx, buyerID, itemID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id is required")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, buyerID, itemID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// ClearCart drops the listed items, or the whole cart when the body is empty.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ClearCartRequestDTO
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.Clear(ctx, buyerID, req.ItemIDs...)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) toViewDTO(v *service.CartView) CartViewDTO {
	out := CartViewDTO{
		BuyerID:      v.Cart.BuyerID,
		Lines:        make([]CartLineDTO, len(v.Lines)),
		Groups:       make([]SellerGroupDTO, len(v.Groups)),
		Total:        v.Total,
		DisplayTotal: pricing.FormatMinor(v.Total),
		Currency:     h.currency,
	}
	for i, l := range v.Lines {
		out.Lines[i] = CartLineDTO{
			ItemID:    l.Item.ID,
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			SellerID:  l.Product.SellerID,
			Quantity:  l.Item.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		}
	}
	for i, g := range v.Groups {
		out.Groups[i] = SellerGroupDTO{
			SellerID:   g.SellerID,
			ItemIDs:    g.ItemIDs(),
			GroupTotal: g.GroupTotal,
		}
	}
	return out
}
