package enums

import "fmt"

// MaterialStatus tracks the availability of a material row.
type MaterialStatus string

const (
	MaterialStatusAvailable MaterialStatus = "available"
	MaterialStatusReserved  MaterialStatus = "reserved"
	MaterialStatusDamaged   MaterialStatus = "damaged"
	MaterialStatusExpired   MaterialStatus = "expired"
)

var validMaterialStatuses = []MaterialStatus{
	MaterialStatusAvailable,
	MaterialStatusReserved,
	MaterialStatusDamaged,
	MaterialStatusExpired,
}

// String implements fmt.Stringer.
func (m MaterialStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MaterialStatus.
func (m MaterialStatus) IsValid() bool {
	for _, candidate := range validMaterialStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMaterialStatus converts raw input into a MaterialStatus.
func ParseMaterialStatus(value string) (MaterialStatus, error) {
	for _, candidate := range validMaterialStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material status %q", value)
}
