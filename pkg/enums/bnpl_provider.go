package enums

import "fmt"

// BNPLProvider is the closed set of buy-now-pay-later partners. Each provider
// carries a fixed installment count; extending the program means adding a
// variant here, not reshaping order records.
type BNPLProvider string

const (
	BNPLProviderSimpl     BNPLProvider = "simpl"
	BNPLProviderLazyPay   BNPLProvider = "lazypay"
	BNPLProviderZestMoney BNPLProvider = "zestmoney"
)

var bnplInstallments = map[BNPLProvider]int{
	BNPLProviderSimpl:     3,
	BNPLProviderLazyPay:   1,
	BNPLProviderZestMoney: 6,
}

// String implements fmt.Stringer.
func (p BNPLProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known BNPLProvider.
func (p BNPLProvider) IsValid() bool {
	_, ok := bnplInstallments[p]
	return ok
}

// Installments returns the provider's fixed installment count, or 0 for an
// unknown provider.
func (p BNPLProvider) Installments() int {
	return bnplInstallments[p]
}

// ParseBNPLProvider converts raw input into a BNPLProvider.
func ParseBNPLProvider(value string) (BNPLProvider, error) {
	candidate := BNPLProvider(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid bnpl provider %q", value)
	}
	return candidate, nil
}
