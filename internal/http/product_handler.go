package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	GetProducts(ctx context.Context, productIDs []int64) ([]domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
}

type ProductHandler struct {
	catalog ProductCatalog
}

func NewProductHandler(catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// GET /api/v1/products?supplier_id=&category=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ProductFilter{SupplierID: query.Get("supplier_id")}
	if raw := query.Get("category"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || categoryID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_category", "category must be a positive integer")
			return
		}
		filter.CategoryID = categoryID
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

// GET /api/v1/suppliers
func (h *ProductHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.catalog.ListSuppliers(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if suppliers == nil {
		suppliers = []domain.Supplier{}
	}
	respondJSON(w, http.StatusOK, suppliers)
}
