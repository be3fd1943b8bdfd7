package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier owns products and fulfils sub-orders.
type Supplier struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	URL             string    `json:"url,omitempty" db:"url"`
	AcceptingOrders bool      `json:"accepting_orders" db:"accepting_orders"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Category groups products across suppliers.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Product struct {
	ID               int64             `json:"id"`
	SupplierID       string            `json:"supplier_id"`
	CategoryID       int64             `json:"category_id,omitempty"`
	Name             string            `json:"name"`
	Model            string            `json:"model,omitempty"`
	Price            decimal.Decimal   `json:"price"`
	RecommendedPrice decimal.Decimal   `json:"recommended_price"`
	Stock            int32             `json:"stock"`
	Characteristics  map[string]string `json:"characteristics,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ProductFilter narrows a product listing. Zero fields match everything.
type ProductFilter struct {
	SupplierID string
	CategoryID int64
}

func (f ProductFilter) Match(p *Product) bool {
	if f.SupplierID != "" && p.SupplierID != f.SupplierID {
		return false
	}
	return f.CategoryID == 0 || p.CategoryID == f.CategoryID
}

// StockLine is a quantity of one product taken from or returned to stock.
type StockLine struct {
	ProductID int64
	Quantity  int32
}

// SupplierState summarises a supplier's catalog and workload.
type SupplierState struct {
	Supplier        Supplier `json:"supplier"`
	TotalProducts   int      `json:"total_products"`
	InStockProducts int      `json:"in_stock_products"`
	ActiveSubOrders int      `json:"active_sub_orders"`
}
