package enums

import "fmt"

// POStatus tracks the lifecycle of a purchase order.
type POStatus string

const (
	POStatusPlaced            POStatus = "placed"
	POStatusPartiallyReceived POStatus = "partially_received"
	POStatusFullyReceived     POStatus = "fully_received"
	POStatusCancelled         POStatus = "cancelled"
)

var validPOStatuses = []POStatus{
	POStatusPlaced,
	POStatusPartiallyReceived,
	POStatusFullyReceived,
	POStatusCancelled,
}

// String implements fmt.Stringer.
func (s POStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known POStatus.
func (s POStatus) IsValid() bool {
	for _, candidate := range validPOStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePOStatus converts raw input into a POStatus.
func ParsePOStatus(value string) (POStatus, error) {
	for _, candidate := range validPOStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
