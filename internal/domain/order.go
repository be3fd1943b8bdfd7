package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a snapshot of a cart item taken at checkout. Later price changes do not touch it.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Contact struct {
	City      string `json:"city"`
	Street    string `json:"street"`
	House     string `json:"house"`
	Apartment string `json:"apartment,omitempty"`
	Phone     string `json:"phone"`
}

type SubOrder struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	SupplierID string     `json:"supplier_id"`
	BuyerID    string     `json:"buyer_id"`
	Items      []LineItem `json:"items"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// PreviousStatus is the status before the last transition.
	PreviousStatus  Status `json:"-"`
	// AnnouncedStatus is the last status whose change event reached the outbox.
	AnnouncedStatus Status `json:"-"`
}

// Unannounced reports whether the last transition still lacks its change event.
func (s *SubOrder) Unannounced() bool {
	return s.Status != StatusNew && s.AnnouncedStatus != s.Status
}

func (s *SubOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// StockLines returns the quantities this sub-order took from stock.
func (s *SubOrder) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type Order struct {
	ID             uuid.UUID  `json:"id"`
	BuyerID        string     `json:"buyer_id"`
	IdempotencyKey string     `json:"-"`
	Contact        *Contact   `json:"contact,omitempty"`
	SubOrders      []SubOrder `json:"sub_orders"`
	CreatedAt      time.Time  `json:"created_at"`
	// Announced is set once the OrderCreated event is in the outbox.
	Announced      bool       `json:"-"`
}

// Status is derived from the sub-orders on every read and never stored.
func (o *Order) Status() Status {
	statuses := make([]Status, 0, len(o.SubOrders))
	for _, sub := range o.SubOrders {
		statuses = append(statuses, sub.Status)
	}
	return AggregateStatus(statuses)
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range o.SubOrders {
		total = total.Add(o.SubOrders[i].Total())
	}
	return total
}

// StockLines returns the quantities of all sub-orders.
func (o *Order) StockLines() []StockLine {
	var lines []StockLine
	for i := range o.SubOrders {
		lines = append(lines, o.SubOrders[i].StockLines()...)
	}
	return lines
}
