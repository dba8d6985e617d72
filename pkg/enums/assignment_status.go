package enums

import "fmt"

// AssignmentStatus tracks a single restaurant offer for an order.
type AssignmentStatus string

const (
	AssignmentStatusPending  AssignmentStatus = "pending"
	AssignmentStatusAccepted AssignmentStatus = "accepted"
	AssignmentStatusRejected AssignmentStatus = "rejected"
	AssignmentStatusExpired  AssignmentStatus = "expired"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusRejected,
	AssignmentStatusExpired,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
