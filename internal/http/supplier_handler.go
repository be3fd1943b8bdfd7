package http

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type SupplierService interface {
	ImportProducts(ctx context.Context, supplierID string, categories []domain.Category, products []domain.Product) ([]domain.Product, error)
	SetStock(ctx context.Context, supplierID string, productID int64, quantity int32) error
	SetAcceptingOrders(ctx context.Context, supplierID string, accepting bool) error
	State(ctx context.Context, supplierID string) (*domain.SupplierState, error)
	Orders(ctx context.Context, supplierID string) ([]*domain.SubOrder, error)
}

type SupplierHandler struct {
	suppliers SupplierService
	tracker   StatusTracker
}

func NewSupplierHandler(suppliers SupplierService, tracker StatusTracker) *SupplierHandler {
	return &SupplierHandler{
		suppliers: suppliers,
		tracker:   tracker,
	}
}

// priceScale is the number of decimal places stored for a price.
const priceScale = 2

// Prices are also bounded by the NUMERIC(12,2) column they are stored in.
type ProductDTO struct {
	ID               int64             `json:"id" validate:"gt=0"`
	CategoryID       int64             `json:"category_id" validate:"gte=0"`
	Name             string            `json:"name" validate:"required,max=255"`
	Model            string            `json:"model" validate:"max=255"`
	Price            decimal.Decimal   `json:"price" validate:"gt=0,lt=10000000000"`
	RecommendedPrice decimal.Decimal   `json:"recommended_price" validate:"gte=0,lt=10000000000"`
	Stock            int32             `json:"stock" validate:"gte=0"`
	Characteristics  map[string]string `json:"characteristics"`
}

// validateProductPrices rejects prices with more decimal places than are stored,
// which would otherwise be rounded silently.
func validateProductPrices(sl validator.StructLevel) {
	p := sl.Current().Interface().(ProductDTO)
	if !p.Price.Equal(p.Price.Round(priceScale)) {
		sl.ReportError(p.Price, "price", "Price", "max_scale", "2")
	}
	if !p.RecommendedPrice.Equal(p.RecommendedPrice.Round(priceScale)) {
		sl.ReportError(p.RecommendedPrice, "recommended_price", "RecommendedPrice", "max_scale", "2")
	}
}

type CategoryDTO struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"required,max=255"`
}

// ImportProductsRequestDTO is a supplier's price list. Products may refer to the
// categories listed next to them or to ones already known.
type ImportProductsRequestDTO struct {
	Categories []CategoryDTO `json:"categories" validate:"dive"`
	Products   []ProductDTO  `json:"products" validate:"required,min=1,dive"`
}

type SetStockRequestDTO struct {
	Quantity *int32 `json:"quantity" validate:"required,gte=0"`
}

type SupplierStateRequestDTO struct {
	AcceptingOrders *bool `json:"accepting_orders" validate:"required"`
}

type TransitionRequestDTO struct {
	Status domain.Status `json:"status" validate:"required,oneof=CONFIRMED ASSEMBLED SHIPPED DELIVERED CANCELLED"`
}

// PUT /api/v1/supplier/products
func (h *SupplierHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req ImportProductsRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	categories := make([]domain.Category, 0, len(req.Categories))
	for _, c := range req.Categories {
		categories = append(categories, domain.Category{ID: c.ID, Name: c.Name})
	}

	products := make([]domain.Product, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, domain.Product{
			ID:               p.ID,
			CategoryID:       p.CategoryID,
			Name:             p.Name,
			Model:            p.Model,
			Price:            p.Price,
			RecommendedPrice: p.RecommendedPrice,
			Stock:            p.Stock,
			Characteristics:  p.Characteristics,
		})
	}

	stored, err := h.suppliers.ImportProducts(r.Context(), id.UserID, categories, products)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

// PUT /api/v1/supplier/products/{product_id}/stock
func (h *SupplierHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req SetStockRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if err := h.suppliers.SetStock(r.Context(), id.UserID, productID, *req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/supplier/state
func (h *SupplierHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	state, err := h.suppliers.State(r.Context(), id.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// PATCH /api/v1/supplier/state
func (h *SupplierHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req SupplierStateRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if err := h.suppliers.SetAcceptingOrders(r.Context(), id.UserID, *req.AcceptingOrders); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.GetState(w, r)
}

// GET /api/v1/supplier/orders
func (h *SupplierHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	subOrders, err := h.suppliers.Orders(r.Context(), id.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]SubOrderResponseDTO, 0, len(subOrders))
	for _, s := range subOrders {
		dtos = append(dtos, convertSubOrder(s))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// PATCH /api/v1/supplier/orders/{sub_order_id}
func (h *SupplierHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	subOrderID, ok := uuidParam(r, "sub_order_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_sub_order_id", "sub_order_id must be a UUID")
		return
	}

	var req TransitionRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	sub, err := h.tracker.TransitionBySupplier(r.Context(), id.UserID, subOrderID, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertSubOrder(sub))
}
