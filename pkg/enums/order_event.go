package enums

// OrderEventType names the notifications emitted around the order lifecycle.
// Delivery of these events is fire-and-forget.
type OrderEventType string

const (
	EventOrderPlaced         OrderEventType = "order.placed"
	EventOrderPaid           OrderEventType = "order.paid"
	EventOrderPaymentFailed  OrderEventType = "order.payment_failed"
	EventOrderStatusAdvanced OrderEventType = "order.status_advanced"
	EventOrderCancelled      OrderEventType = "order.cancelled"
	EventOrderAgentAssigned  OrderEventType = "order.agent_assigned"
	EventOrderReturnUpdated  OrderEventType = "order.return_updated"
)

// String implements fmt.Stringer.
func (e OrderEventType) String() string {
	return string(e)
}
