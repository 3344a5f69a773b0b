package enums

import "fmt"

// MovementType classifies a stock movement entry.
type MovementType string

const (
	MovementTypeIn          MovementType = "in"
	MovementTypeOut         MovementType = "out"
	MovementTypeTransferIn  MovementType = "transfer_in"
	MovementTypeTransferOut MovementType = "transfer_out"
	MovementTypeAdjustment  MovementType = "adjustment"
)

var validMovementTypes = []MovementType{
	MovementTypeIn,
	MovementTypeOut,
	MovementTypeTransferIn,
	MovementTypeTransferOut,
	MovementTypeAdjustment,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}

// MovementRefType identifies which aggregate caused a stock movement.
type MovementRefType string

const (
	MovementRefOrder          MovementRefType = "order"
	MovementRefTransfer       MovementRefType = "warehouse_transfer"
	MovementRefInventoryCount MovementRefType = "inventory_count"
	MovementRefIntake         MovementRefType = "material_intake"
	MovementRefManual         MovementRefType = "manual"
)

// IsValid reports whether the value is a known MovementRefType.
func (m MovementRefType) IsValid() bool {
	switch m {
	case MovementRefOrder, MovementRefTransfer, MovementRefInventoryCount, MovementRefIntake, MovementRefManual:
		return true
	default:
		return false
	}
}
