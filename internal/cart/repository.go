package cart

import (
	"context"
	"errors"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// Repository defines the interface for cart data operations
type Repository interface {
	GetCart(ctx context.Context, buyerID string) (*domain.Cart, error)
	// UpsertCart replaces the whole cart of cart.BuyerID
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	// AddItem inserts the item or adds its quantity to the existing line of the same product
	AddItem(ctx context.Context, buyerID string, item domain.CartItem) error
	// RemoveItem is a no-op when the product is not in the cart
	RemoveItem(ctx context.Context, buyerID string, productID int64) error
	DeleteCart(ctx context.Context, buyerID string) error
}
