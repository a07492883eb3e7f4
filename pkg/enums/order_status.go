package enums

import "fmt"

// OrderStatus tracks the linear fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatusRanks = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRanks[s]
	return ok
}

// Rank returns the lifecycle position of the status. Cancelled is terminal and
// carries no rank; it returns -1.
func (s OrderStatus) Rank() int {
	if rank, ok := orderStatusRanks[s]; ok {
		return rank
	}
	return -1
}

// Terminal reports whether no further lifecycle advance is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	candidate := OrderStatus(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid order status %q", value)
	}
	return candidate, nil
}
