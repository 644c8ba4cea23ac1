package enums

import "fmt"

// MTOStatus tracks how much of a materials-to-order request is covered by
// reservations and purchase orders. It is always derived, never set directly
// by a client.
type MTOStatus string

const (
	MTOStatusDraft            MTOStatus = "draft"
	MTOStatusPartiallyOrdered MTOStatus = "partially_ordered"
	MTOStatusFullyOrdered     MTOStatus = "fully_ordered"
	MTOStatusClosed           MTOStatus = "closed"
)

var validMTOStatuses = []MTOStatus{
	MTOStatusDraft,
	MTOStatusPartiallyOrdered,
	MTOStatusFullyOrdered,
	MTOStatusClosed,
}

// String implements fmt.Stringer.
func (s MTOStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known MTOStatus.
func (s MTOStatus) IsValid() bool {
	for _, candidate := range validMTOStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether reservations attached to the request are frozen.
func (s MTOStatus) IsTerminal() bool {
	return s == MTOStatusFullyOrdered || s == MTOStatusClosed
}

// ParseMTOStatus converts raw input into an MTOStatus.
func ParseMTOStatus(value string) (MTOStatus, error) {
	for _, candidate := range validMTOStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid materials-to-order status %q", value)
}
