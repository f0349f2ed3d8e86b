package enums

import "fmt"

// CancelReason records why a pending payment was voided.
type CancelReason string

const (
	CancelReasonRejectedByGateway CancelReason = "rejected_by_gateway"
	CancelReasonCanceledByUser    CancelReason = "canceled_by_user"
	CancelReasonCanceledBySystem  CancelReason = "canceled_by_system"
	CancelReasonTimeout           CancelReason = "timeout"
)

var validCancelReasons = []CancelReason{
	CancelReasonRejectedByGateway,
	CancelReasonCanceledByUser,
	CancelReasonCanceledBySystem,
	CancelReasonTimeout,
}

// String implements fmt.Stringer.
func (c CancelReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelReason.
func (c CancelReason) IsValid() bool {
	for _, candidate := range validCancelReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelReason converts raw input into a CancelReason.
func ParseCancelReason(value string) (CancelReason, error) {
	for _, candidate := range validCancelReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel reason %q", value)
}
