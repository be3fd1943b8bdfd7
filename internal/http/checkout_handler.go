package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tamoykinden/Final-project-auto-purch/internal/checkout"
	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (uuid.UUID, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	orders   OrderReader
}

func NewCheckoutHandler(svc CheckoutService, orders OrderReader) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		orders:   orders,
	}
}

type ContactDTO struct {
	City      string `json:"city" validate:"required,max=100"`
	Street    string `json:"street" validate:"required,max=200"`
	House     string `json:"house" validate:"required,max=20"`
	Apartment string `json:"apartment" validate:"max=20"`
	Phone     string `json:"phone" validate:"required,min=5,max=20"`
}

// CheckoutRequestDTO is optional; an empty body checks out without a delivery contact.
type CheckoutRequestDTO struct {
	Contact *ContactDTO `json:"contact" validate:"omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req CheckoutRequestDTO
	if err := decodeJSON(w, r, &req, true); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if len(key) > 255 {
		respondError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key must not exceed 255 characters")
		return
	}

	checkoutReq := checkout.Request{
		BuyerID:        id.UserID,
		IdempotencyKey: key,
	}
	if req.Contact != nil {
		checkoutReq.Contact = &domain.Contact{
			City:      req.Contact.City,
			Street:    req.Contact.Street,
			House:     req.Contact.House,
			Apartment: req.Contact.Apartment,
			Phone:     req.Contact.Phone,
		}
	}

	orderID, err := h.checkout.Checkout(r.Context(), checkoutReq)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, convertOrder(o))
}
