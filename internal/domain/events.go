package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderCreated          EventType = "OrderCreated"
	EventSubOrderStatusChanged EventType = "SubOrderStatusChanged"
)

// Event is what the notification side consumes. Fields that do not apply to the type stay empty.
type Event struct {
	ID          uuid.UUID `json:"event_id"`
	Type        EventType `json:"event_type"`
	OrderID     uuid.UUID `json:"order_id"`
	SubOrderID  uuid.UUID `json:"sub_order_id,omitempty"`
	BuyerID     string    `json:"buyer_id"`
	SupplierID  string    `json:"supplier_id,omitempty"`
	OldStatus   Status    `json:"old_status,omitempty"`
	NewStatus   Status    `json:"new_status,omitempty"`
	OrderStatus Status    `json:"order_status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// eventNamespace derives event ids from what they announce, so an event emitted again
// after a failure carries the same id and consumers can drop the duplicate.
var eventNamespace = uuid.MustParse("6f1d3c52-8a0e-4c55-9b7e-2d4f0e8b1a93")

func NewOrderCreated(order *Order) Event {
	return Event{
		ID:          uuid.NewSHA1(eventNamespace, []byte(string(EventOrderCreated)+"/"+order.ID.String())),
		Type:        EventOrderCreated,
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		OrderStatus: order.Status(),
		OccurredAt:  time.Now().UTC(),
	}
}

func NewSubOrderStatusChanged(sub *SubOrder, oldStatus Status, orderStatus Status) Event {
	return Event{
		ID:          uuid.NewSHA1(eventNamespace, []byte(string(EventSubOrderStatusChanged)+"/"+sub.ID.String()+"/"+string(sub.Status))),
		Type:        EventSubOrderStatusChanged,
		OrderID:     sub.OrderID,
		SubOrderID:  sub.ID,
		BuyerID:     sub.BuyerID,
		SupplierID:  sub.SupplierID,
		OldStatus:   oldStatus,
		NewStatus:   sub.Status,
		OrderStatus: orderStatus,
		OccurredAt:  time.Now().UTC(),
	}
}
