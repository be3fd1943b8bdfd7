package domain

type Status string

const (
	StatusNew       Status = "NEW"
	StatusConfirmed Status = "CONFIRMED"
	StatusAssembled Status = "ASSEMBLED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// allowedTransitions lists every legal move of a sub-order.
// Cancellation is not possible once the parcel has left the supplier.
var allowedTransitions = map[Status]map[Status]bool{
	StatusNew: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusAssembled: true,
		StatusCancelled: true,
	},
	StatusAssembled: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
}

// progress orders statuses along the fulfilment path.
var progress = map[Status]int{
	StatusNew:       0,
	StatusConfirmed: 1,
	StatusAssembled: 2,
	StatusShipped:   3,
	StatusDelivered: 4,
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) IsValid() bool {
	_, ok := progress[s]
	return ok || s == StatusCancelled
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

func CanTransitionTo(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// AggregateStatus derives the buyer-visible status of an order from its sub-orders.
// DELIVERED and CANCELLED are reported only when every sub-order agrees; otherwise the
// least advanced status among the sub-orders that are not cancelled wins.
func AggregateStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusNew
	}

	allDelivered, allCancelled := true, true
	var least Status
	for _, s := range statuses {
		if s != StatusDelivered {
			allDelivered = false
		}
		if s != StatusCancelled {
			allCancelled = false
		}
		if s == StatusCancelled {
			continue
		}
		if least == "" || progress[s] < progress[least] {
			least = s
		}
	}

	switch {
	case allDelivered:
		return StatusDelivered
	case allCancelled:
		return StatusCancelled
	default:
		return least
	}
}
