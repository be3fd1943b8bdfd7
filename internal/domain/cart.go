package domain

import "time"

type Cart struct {
	ID        string     `json:"-" bson:"_id,omitempty"`
	BuyerID   string     `json:"buyer_id" bson:"buyer_id"`
	Items     []CartItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// CartItem keeps the supplier of the product so carts can be grouped without catalog lookups.
type CartItem struct {
	ProductID  int64     `json:"product_id" bson:"product_id"`
	SupplierID string    `json:"supplier_id" bson:"supplier_id"`
	Quantity   int32     `json:"quantity" bson:"quantity"`
	AddedAt    time.Time `json:"added_at" bson:"added_at"`
}

// Quantity returns the quantity of productID in the cart, zero if absent.
func (c *Cart) Quantity(productID int64) int32 {
	if c == nil {
		return 0
	}
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

type SupplierGroup struct {
	SupplierID string     `json:"supplier_id"`
	Items      []CartItem `json:"items"`
}
