package ledger

import (
	"github.com/google/uuid"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// Ref ties a stock movement to the operation that caused it. It replaces a
// raw reference_id/reference_type column pair with a closed set of
// constructors so a movement can never point at a kind of record the ledger
// does not know about.
type Ref struct {
	refType enums.MovementRefType
	id      *uuid.UUID
}

// OrderRef marks a movement caused by an order reservation or reversal.
func OrderRef(orderID uuid.UUID) Ref {
	return Ref{refType: enums.MovementRefOrder, id: &orderID}
}

// TransferRef marks one leg of a warehouse transfer.
func TransferRef(transferID uuid.UUID) Ref {
	return Ref{refType: enums.MovementRefTransfer, id: &transferID}
}

// CountRef marks an adjustment applied by an approved inventory count.
func CountRef(countID uuid.UUID) Ref {
	return Ref{refType: enums.MovementRefInventoryCount, id: &countID}
}

// IntakeRef marks the initial stock recorded when a material is registered.
func IntakeRef() Ref {
	return Ref{refType: enums.MovementRefIntake}
}

// ManualRef marks a hold or release applied directly by a keeper rather
// than by an order, transfer, or count.
func ManualRef() Ref {
	return Ref{refType: enums.MovementRefManual}
}

// Type returns the movement reference type.
func (r Ref) Type() enums.MovementRefType {
	return r.refType
}

// ID returns the referenced record id, nil for intake movements.
func (r Ref) ID() *uuid.UUID {
	return r.id
}

// IsZero reports whether the ref was never constructed.
func (r Ref) IsZero() bool {
	return r.refType == ""
}
