package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type OrderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

type StatusTracker interface {
	TransitionBySupplier(ctx context.Context, supplierID string, subOrderID uuid.UUID, next domain.Status) (*domain.SubOrder, error)
	Cancel(ctx context.Context, buyerID string, subOrderID uuid.UUID) (*domain.SubOrder, error)
	CancelOrder(ctx context.Context, buyerID string, orderID uuid.UUID) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	tracker StatusTracker
}

func NewOrdersHandler(orders OrderReader, tracker StatusTracker) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		tracker: tracker,
	}
}

type SubOrderResponseDTO struct {
	ID         string            `json:"id"`
	OrderID    string            `json:"order_id"`
	SupplierID string            `json:"supplier_id"`
	Status     domain.Status     `json:"status"`
	Items      []domain.LineItem `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

type OrderResponseDTO struct {
	ID        string                `json:"id"`
	Status    domain.Status         `json:"status"`
	Total     decimal.Decimal       `json:"total"`
	Contact   *domain.Contact       `json:"contact,omitempty"`
	SubOrders []SubOrderResponseDTO `json:"sub_orders"`
	CreatedAt string                `json:"created_at"`
}

func convertSubOrder(s *domain.SubOrder) SubOrderResponseDTO {
	items := s.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return SubOrderResponseDTO{
		ID:         s.ID.String(),
		OrderID:    s.OrderID.String(),
		SupplierID: s.SupplierID,
		Status:     s.Status,
		Items:      items,
		Total:      s.Total(),
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	subOrders := make([]SubOrderResponseDTO, 0, len(o.SubOrders))
	for i := range o.SubOrders {
		subOrders = append(subOrders, convertSubOrder(&o.SubOrders[i]))
	}
	return OrderResponseDTO{
		ID:        o.ID.String(),
		Status:    o.Status(),
		Total:     o.Total(),
		Contact:   o.Contact,
		SubOrders: subOrders,
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	orders, err := h.orders.ListOrdersByBuyer(r.Context(), id.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	orderID, ok := uuidParam(r, "order_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if o.BuyerID != id.UserID {
		handleServiceError(w, r, domain.ErrForbidden)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(o))
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	orderID, ok := uuidParam(r, "order_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	o, err := h.tracker.CancelOrder(r.Context(), id.UserID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(o))
}

// POST /api/v1/sub-orders/{sub_order_id}/cancel
func (h *OrdersHandler) CancelSubOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	subOrderID, ok := uuidParam(r, "sub_order_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_sub_order_id", "sub_order_id must be a UUID")
		return
	}

	sub, err := h.tracker.Cancel(r.Context(), id.UserID, subOrderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertSubOrder(sub))
}
