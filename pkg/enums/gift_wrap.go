package enums

import "fmt"

// GiftWrapType selects the packaging applied to a gifted order.
type GiftWrapType string

const (
	GiftWrapClassic GiftWrapType = "classic"
	GiftWrapPremium GiftWrapType = "premium"
	GiftWrapFestive GiftWrapType = "festive"
)

var validGiftWrapTypes = []GiftWrapType{
	GiftWrapClassic,
	GiftWrapPremium,
	GiftWrapFestive,
}

// String implements fmt.Stringer.
func (g GiftWrapType) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GiftWrapType.
func (g GiftWrapType) IsValid() bool {
	for _, candidate := range validGiftWrapTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGiftWrapType converts raw input into a GiftWrapType.
func ParseGiftWrapType(value string) (GiftWrapType, error) {
	for _, candidate := range validGiftWrapTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gift wrap type %q", value)
}
