package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrOutOfStock          = errors.New("not enough stock")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrInvalidTransition   = errors.New("illegal transition of sub-order status")
	ErrNotFound            = errors.New("not found")
	ErrSupplierUnavailable = errors.New("supplier is not accepting orders")
	ErrForbidden           = errors.New("resource belongs to another actor")
)

// OutOfStockError describes one line that could not be covered by stock.
type OutOfStockError struct {
	ProductID int64 `json:"product_id"`
	Requested int32 `json:"requested"`
	Available int32 `json:"available"`
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// OutOfStockErrors collects every affected line of a rejected stock decrement.
type OutOfStockErrors []*OutOfStockError

func (e OutOfStockErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, item := range e {
		parts = append(parts, item.Error())
	}
	return fmt.Sprintf("%s: %s", ErrOutOfStock, strings.Join(parts, "; "))
}

func (e OutOfStockErrors) Unwrap() error {
	return ErrOutOfStock
}
