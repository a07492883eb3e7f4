package enums

import "fmt"

// ReturnType distinguishes a refund return from an exchange.
type ReturnType string

const (
	ReturnTypeReturn   ReturnType = "return"
	ReturnTypeExchange ReturnType = "exchange"
)

// String implements fmt.Stringer.
func (t ReturnType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ReturnType.
func (t ReturnType) IsValid() bool {
	return t == ReturnTypeReturn || t == ReturnTypeExchange
}

// ParseReturnType converts raw input into a ReturnType.
func ParseReturnType(value string) (ReturnType, error) {
	candidate := ReturnType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid return type %q", value)
	}
	return candidate, nil
}

// ReturnStatus tracks the post-delivery return/exchange workflow.
type ReturnStatus string

const (
	ReturnStatusNone      ReturnStatus = "none"
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusCompleted ReturnStatus = "completed"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusNone,
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusCompleted,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Open reports whether a request is still awaiting a decision or completion.
func (s ReturnStatus) Open() bool {
	return s == ReturnStatusPending || s == ReturnStatusApproved
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
