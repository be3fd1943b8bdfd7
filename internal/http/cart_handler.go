package http

import (
	"context"
	"iter"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type CartService interface {
	AddItem(ctx context.Context, buyerID string, productID int64, quantity int32) error
	RemoveItem(ctx context.Context, buyerID string, productID int64) error
	ListBySupplier(ctx context.Context, buyerID string) (iter.Seq[domain.SupplierGroup], error)
}

type CartHandler struct {
	carts   CartService
	catalog ProductCatalog
}

func NewCartHandler(carts CartService, catalog ProductCatalog) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`

	// zero and negative quantities are left to the cart, which reports invalid_quantity
	Quantity int32 `json:"quantity" validate:"lte=1000000"`
}

type CartItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartGroupDTO struct {
	SupplierID string          `json:"supplier_id"`
	Items      []CartItemDTO   `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// CartResponseDTO shows current catalog prices; the price is fixed only at checkout.
type CartResponseDTO struct {
	BuyerID string          `json:"buyer_id"`
	Groups  []CartGroupDTO  `json:"groups"`
	Total   decimal.Decimal `json:"total"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, http.StatusOK)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int) {
	id, _ := identityFromContext(r.Context())

	groups, err := h.carts.ListBySupplier(r.Context(), id.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := CartResponseDTO{BuyerID: id.UserID, Groups: []CartGroupDTO{}, Total: decimal.Zero}
	var productIDs []int64
	for group := range groups {
		dto := CartGroupDTO{SupplierID: group.SupplierID, Items: make([]CartItemDTO, 0, len(group.Items))}
		for _, item := range group.Items {
			dto.Items = append(dto.Items, CartItemDTO{ProductID: item.ProductID, Quantity: item.Quantity})
			productIDs = append(productIDs, item.ProductID)
		}
		resp.Groups = append(resp.Groups, dto)
	}

	if len(productIDs) > 0 {
		products, err := h.catalog.GetProducts(r.Context(), productIDs)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		priceCart(&resp, products)
	}

	respondJSON(w, status, resp)
}

func priceCart(resp *CartResponseDTO, products []domain.Product) {
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for gi := range resp.Groups {
		group := &resp.Groups[gi]
		group.Subtotal = decimal.Zero
		for ii := range group.Items {
			item := &group.Items[ii]
			p, ok := byID[item.ProductID]
			if !ok {
				// removed from the catalog after it was added
				continue
			}
			item.ProductName = p.Name
			item.UnitPrice = p.Price
			item.Subtotal = p.Price.Mul(decimal.NewFromInt32(item.Quantity))
			group.Subtotal = group.Subtotal.Add(item.Subtotal)
		}
		resp.Total = resp.Total.Add(group.Subtotal)
	}
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if err := h.carts.AddItem(r.Context(), id.UserID, req.ProductID, req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.respondCart(w, r, http.StatusCreated)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if err := h.carts.RemoveItem(r.Context(), id.UserID, productID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.respondCart(w, r, http.StatusOK)
}
