package types

import "strings"

// ShippingAddress is the destination snapshot frozen into an order at
// creation. Stored as jsonb on the order row.
type ShippingAddress struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Phone    string `json:"phone" validate:"required,len=10,numeric"`
	Line1    string `json:"line1" validate:"required,min=3,max=200"`
	Line2    string `json:"line2,omitempty" validate:"omitempty,max=200"`
	Landmark string `json:"landmark,omitempty" validate:"omitempty,max=120"`
	City     string `json:"city" validate:"required,min=2,max=80"`
	State    string `json:"state" validate:"required,min=2,max=80"`
	Pincode  string `json:"pincode" validate:"required,len=6,numeric"`
}

// Normalize trims surrounding whitespace from every field.
func (a *ShippingAddress) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.Landmark = strings.TrimSpace(a.Landmark)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Pincode = strings.TrimSpace(a.Pincode)
}

// GiftDetails is the optional gifting attachment carried by every order.
type GiftDetails struct {
	IsGift       bool   `json:"is_gift"`
	WrappingType string `json:"wrapping_type,omitempty"`
	Message      string `json:"message,omitempty" validate:"omitempty,max=300"`
	HidePrice    bool   `json:"hide_price"`
}
