package enums

import "fmt"

// RewardTransactionType classifies entries in the reward point ledger.
type RewardTransactionType string

const (
	// RewardTransactionEarn credits points after a paid delivery.
	RewardTransactionEarn RewardTransactionType = "earn"
	// RewardTransactionRedeemHold debits points pending payment confirmation.
	RewardTransactionRedeemHold RewardTransactionType = "redeem_hold"
	// RewardTransactionRedeem marks a hold committed by a confirmed payment.
	RewardTransactionRedeem RewardTransactionType = "redeem"
	// RewardTransactionRelease returns held points after a failed or
	// abandoned payment attempt.
	RewardTransactionRelease RewardTransactionType = "release"
)

var validRewardTransactionTypes = []RewardTransactionType{
	RewardTransactionEarn,
	RewardTransactionRedeemHold,
	RewardTransactionRedeem,
	RewardTransactionRelease,
}

// String implements fmt.Stringer.
func (t RewardTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known RewardTransactionType.
func (t RewardTransactionType) IsValid() bool {
	for _, candidate := range validRewardTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRewardTransactionType converts raw input into a RewardTransactionType.
func ParseRewardTransactionType(value string) (RewardTransactionType, error) {
	for _, candidate := range validRewardTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward transaction type %q", value)
}
