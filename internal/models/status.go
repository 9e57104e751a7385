package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses. An order starts as pending; delivered and cancelled
// are terminal.
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ValidStatus reports whether s names a known order status
func ValidStatus(s OrderStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// AllowedTransitions returns the statuses reachable from current
func AllowedTransitions(current OrderStatus) []OrderStatus {
	return statusTransitions[current]
}

// CanTransition reports whether an order may move from one status to
// the other in a single step
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
