package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/cart"
	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// buildOrder snapshots the cart with current prices: one sub-order per supplier, in supplier order.
func buildOrder(req Request, c *domain.Cart, products map[int64]domain.Product) *domain.Order {
	now := time.Now().UTC()
	o := &domain.Order{
		ID:             uuid.New(),
		BuyerID:        req.BuyerID,
		IdempotencyKey: req.IdempotencyKey,
		Contact:        req.Contact,
		CreatedAt:      now,
	}

	for group := range cart.GroupBySupplier(c.Items) {
		sub := domain.SubOrder{
			ID:         uuid.New(),
			OrderID:    o.ID,
			SupplierID: group.SupplierID,
			BuyerID:    req.BuyerID,
			Items:      make([]domain.LineItem, 0, len(group.Items)),
			Status:     domain.StatusNew,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, item := range group.Items {
			p := products[item.ProductID]
			sub.Items = append(sub.Items, domain.LineItem{
				ProductID:   item.ProductID,
				ProductName: p.Name,
				Quantity:    item.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    p.Price.Mul(decimal.NewFromInt32(item.Quantity)),
			})
		}
		o.SubOrders = append(o.SubOrders, sub)
	}
	return o
}

func stockLines(c *domain.Cart) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, domain.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
