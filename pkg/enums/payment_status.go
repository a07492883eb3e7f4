package enums

import "fmt"

// PaymentStatus tracks the payment leg of an order independently of its
// fulfillment lifecycle.
type PaymentStatus string

const (
	PaymentStatusCreated                 PaymentStatus = "created"
	PaymentStatusAwaitingPayment         PaymentStatus = "awaiting_payment"
	PaymentStatusAwaitingDeliveryPayment PaymentStatus = "awaiting_delivery_payment"
	PaymentStatusPaid                    PaymentStatus = "paid"
	PaymentStatusFailed                  PaymentStatus = "failed"
	PaymentStatusCancelled               PaymentStatus = "cancelled"
	PaymentStatusRefunded                PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusAwaitingPayment,
	PaymentStatusAwaitingDeliveryPayment,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
