package enums

import "fmt"

// CountStatus tracks whether an inventory count has been applied.
type CountStatus string

const (
	CountStatusPending  CountStatus = "pending"
	CountStatusApproved CountStatus = "approved"
)

// String implements fmt.Stringer.
func (c CountStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CountStatus.
func (c CountStatus) IsValid() bool {
	return c == CountStatusPending || c == CountStatusApproved
}

// ParseCountStatus converts raw input into a CountStatus.
func ParseCountStatus(value string) (CountStatus, error) {
	status := CountStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid count status %q", value)
	}
	return status, nil
}
