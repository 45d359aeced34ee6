package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutUseCase interface {
	Checkout(ctx context.Context, req d.CheckoutRequest) (*d.CheckoutResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutUseCase
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutUseCase, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type BuyerInfoDTO struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,e164"`
}

type AddressDTO struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type CheckoutRequestDTO struct {
	BuyerInfo       BuyerInfoDTO `json:"buyer_info" validate:"required"`
	DeliveryAddress AddressDTO   `json:"delivery_address" validate:"required"`
}

type CheckoutResponseDTO struct {
	*d.CheckoutResult
	Summary string `json:"summary"`
}

// POST /api/v1/checkout
//
// 201 when every seller order was persisted, even if a seller notification
// failed. 207 when at least one group has no order. The body always lists
// every group.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.checkout.Checkout(ctx, d.CheckoutRequest{
		BuyerID: buyerID,
		BuyerInfo: d.BuyerInfo{
			Name:  req.BuyerInfo.Name,
			Email: req.BuyerInfo.Email,
			Phone: req.BuyerInfo.Phone,
		},
		DeliveryAddress: d.Address{
			Line1:      req.DeliveryAddress.Line1,
			Line2:      req.DeliveryAddress.Line2,
			City:       req.DeliveryAddress.City,
			PostalCode: req.DeliveryAddress.PostalCode,
			Country:    req.DeliveryAddress.Country,
		},
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if !result.OverallSuccess {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, CheckoutResponseDTO{
		CheckoutResult: result,
		Summary:        result.Summary(),
	})
}
