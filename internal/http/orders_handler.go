package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/pricing"
	"github.com/go-chi/chi/v5"
)

type OrderUseCase interface {
	ListForBuyer(ctx context.Context, buyerID string) ([]*d.Order, error)
	GetForBuyer(ctx context.Context, buyerID, orderID string) (*d.Order, error)
	ListForSeller(ctx context.Context, sellerID string) ([]*d.Order, error)
	UpdateStatus(ctx context.Context, sellerID, orderID string, to d.OrderStatus) (*d.Order, error)
}

type OrdersHandler struct {
	orders  OrderUseCase
	timeout time.Duration
}

func NewOrdersHandler(orders OrderUseCase, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderResponseDTO struct {
	*d.Order
	DisplayTotal string `json:"display_total"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status" validate:"required,oneof=confirmed shipped delivered cancelled"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListForBuyer(ctx, buyerID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrders(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.orders.GetForBuyer(ctx, buyerID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/seller/orders
func (h *OrdersHandler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListForSeller(ctx, getSellerIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrders(orders))
}

// PATCH /api/v1/seller/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx,
		getSellerIDFromContext(r.Context()),
		chi.URLParam(r, "order_id"),
		d.OrderStatus(req.Status))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

func convertOrders(orders []*d.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

func convertOrder(o *d.Order) OrderResponseDTO {
	return OrderResponseDTO{
		Order:        o,
		DisplayTotal: pricing.FormatMinor(o.TotalAmount),
	}
}
