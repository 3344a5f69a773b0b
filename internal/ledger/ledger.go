package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/metrics"
)

// Ledger is the only writer of material quantity and status. Every mutation
// records a StockMovement row inside the caller's transaction, so a quantity
// change and its audit record commit or roll back together.
type Ledger struct {
	metrics *metrics.StockMetrics
}

// New builds the ledger. Metrics may be nil.
func New(m *metrics.StockMetrics) *Ledger {
	return &Ledger{metrics: m}
}

// ReserveInput describes one reservation against a material row.
type ReserveInput struct {
	MaterialID uuid.UUID
	Qty        int
	ActorID    uuid.UUID
	Ref        Ref
	Notes      *string
}

// ReleaseInput describes a quantity reversal back onto a material row.
type ReleaseInput struct {
	MaterialID uuid.UUID
	Qty        int
	ActorID    uuid.UUID
	Ref        Ref
	Notes      *string
}

// AdjustInput applies a counted quantity to a material row.
type AdjustInput struct {
	MaterialID uuid.UUID
	CountedQty int
	ActorID    uuid.UUID
	Ref        Ref
	Notes      *string
}

// TransferInput moves quantity between warehouses.
type TransferInput struct {
	MaterialID      uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Qty             int
	ActorID         uuid.UUID
	Notes           *string
}

// TransferResult reports both sides of a completed transfer.
type TransferResult struct {
	TransferID  uuid.UUID
	Source      *models.Material
	Destination *models.Material
}

// Reserve removes qty from the material and flips the row to reserved. The
// availability check and the decrement are one guarded UPDATE, so two
// concurrent reservations can never drive the quantity negative: the loser's
// update matches zero rows and fails with insufficient stock.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, in ReserveInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reserve")
	}
	if in.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}
	if in.Ref.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement reference required")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE materials
		SET quantity = quantity - ?,
			status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND quantity >= ?
	`, in.Qty, enums.MaterialStatusReserved, in.MaterialID, enums.MaterialStatusAvailable, in.Qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve material")
	}
	if res.RowsAffected == 0 {
		l.metrics.IncConflict()
		return l.explainReserveFailure(ctx, tx, in)
	}

	if err := l.recordMovement(ctx, tx, movementInput{
		materialID:   in.MaterialID,
		movementType: enums.MovementTypeOut,
		qty:          in.Qty,
		actorID:      in.ActorID,
		ref:          in.Ref,
		notes:        in.Notes,
	}); err != nil {
		return err
	}
	return nil
}

// Release returns qty to the material and flips the row back to available.
// It is the exact inverse of Reserve and is only ever called with quantities
// previously reserved, so the add is unguarded.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, in ReleaseInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for release")
	}
	if in.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}
	if in.Ref.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement reference required")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE materials
		SET quantity = quantity + ?,
			status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, in.Qty, enums.MaterialStatusAvailable, in.MaterialID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release material")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}

	return l.recordMovement(ctx, tx, movementInput{
		materialID:   in.MaterialID,
		movementType: enums.MovementTypeIn,
		qty:          in.Qty,
		actorID:      in.ActorID,
		ref:          in.Ref,
		notes:        in.Notes,
	})
}

// ReleaseHold flips the material back to available without touching
// quantity. Order completion uses this: the reserved stock was consumed by
// the sale, only the hold on the row ends.
func (l *Ledger) ReleaseHold(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for release")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE materials
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, enums.MaterialStatusAvailable, materialID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release material hold")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return nil
}

// Adjust overwrites the quantity with the counted value and records an
// adjustment movement carrying the variance. A zero variance writes nothing.
func (l *Ledger) Adjust(ctx context.Context, tx *gorm.DB, in AdjustInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for adjust")
	}
	if in.CountedQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "counted quantity cannot be negative")
	}
	if in.Ref.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement reference required")
	}

	material, err := l.loadMaterial(ctx, tx, in.MaterialID)
	if err != nil {
		return err
	}

	variance := in.CountedQty - material.Quantity
	if variance == 0 {
		return nil
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE materials
		SET quantity = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, in.CountedQty, in.MaterialID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust material")
	}

	qty := variance
	if qty < 0 {
		qty = -qty
	}
	notes := fmt.Sprintf("count adjustment: variance %+d", variance)
	if in.Notes != nil && *in.Notes != "" {
		notes = fmt.Sprintf("%s (%s)", notes, *in.Notes)
	}
	return l.recordMovement(ctx, tx, movementInput{
		materialID:   in.MaterialID,
		movementType: enums.MovementTypeAdjustment,
		qty:          qty,
		actorID:      in.ActorID,
		ref:          in.Ref,
		notes:        &notes,
	})
}

// Transfer decrements the source row and increments (or creates) the
// same-named material in the destination warehouse, writing one
// transfer_out and one transfer_in movement sharing a transfer id.
func (l *Ledger) Transfer(ctx context.Context, tx *gorm.DB, in TransferInput) (*TransferResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for transfer")
	}
	if in.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ")
	}

	var source models.Material
	err := tx.WithContext(ctx).
		Where("id = ? AND warehouse_id = ?", in.MaterialID, in.FromWarehouseID).
		First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found in source warehouse")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source material")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE materials
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND warehouse_id = ? AND quantity >= ?
	`, in.Qty, in.MaterialID, in.FromWarehouseID, in.Qty)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement source material")
	}
	if res.RowsAffected == 0 {
		l.metrics.IncConflict()
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock in source warehouse").
			WithDetails(map[string]any{
				"material_id": in.MaterialID,
				"requested":   in.Qty,
				"available":   source.Quantity,
			})
	}

	dest, err := l.findOrCreateDestination(ctx, tx, &source, in.ToWarehouseID, in.Qty)
	if err != nil {
		return nil, err
	}

	transferID := uuid.New()
	ref := TransferRef(transferID)
	if err := l.recordMovement(ctx, tx, movementInput{
		materialID:   source.ID,
		warehouseID:  &in.FromWarehouseID,
		movementType: enums.MovementTypeTransferOut,
		qty:          in.Qty,
		actorID:      in.ActorID,
		ref:          ref,
		notes:        in.Notes,
	}); err != nil {
		return nil, err
	}
	if err := l.recordMovement(ctx, tx, movementInput{
		materialID:   dest.ID,
		warehouseID:  &in.ToWarehouseID,
		movementType: enums.MovementTypeTransferIn,
		qty:          in.Qty,
		actorID:      in.ActorID,
		ref:          ref,
		notes:        in.Notes,
	}); err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).First(&source, "id = ?", source.ID).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload source material")
	}
	return &TransferResult{TransferID: transferID, Source: &source, Destination: dest}, nil
}

// RecordIntake writes the in-movement for a freshly registered material.
func (l *Ledger) RecordIntake(ctx context.Context, tx *gorm.DB, material *models.Material, actorID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for intake")
	}
	if material == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "material required")
	}
	if material.Quantity <= 0 {
		return nil
	}
	return l.recordMovement(ctx, tx, movementInput{
		materialID:   material.ID,
		warehouseID:  &material.WarehouseID,
		movementType: enums.MovementTypeIn,
		qty:          material.Quantity,
		actorID:      actorID,
		ref:          IntakeRef(),
	})
}

type movementInput struct {
	materialID   uuid.UUID
	warehouseID  *uuid.UUID
	movementType enums.MovementType
	qty          int
	actorID      uuid.UUID
	ref          Ref
	notes        *string
}

func (l *Ledger) recordMovement(ctx context.Context, tx *gorm.DB, in movementInput) error {
	warehouseID := uuid.Nil
	if in.warehouseID != nil {
		warehouseID = *in.warehouseID
	} else {
		var material models.Material
		if err := tx.WithContext(ctx).Select("warehouse_id").First(&material, "id = ?", in.materialID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve movement warehouse")
		}
		warehouseID = material.WarehouseID
	}

	movement := models.StockMovement{
		MaterialID:    in.materialID,
		WarehouseID:   warehouseID,
		MovementType:  in.movementType,
		Quantity:      in.qty,
		ReferenceID:   in.ref.ID(),
		ReferenceType: in.ref.Type(),
		Notes:         in.notes,
		CreatedBy:     in.actorID,
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	l.metrics.IncMovement(in.movementType.String())
	return nil
}

func (l *Ledger) explainReserveFailure(ctx context.Context, tx *gorm.DB, in ReserveInput) error {
	material, err := l.loadMaterial(ctx, tx, in.MaterialID)
	if err != nil {
		return err
	}
	if material.Status != enums.MaterialStatusAvailable {
		return pkgerrors.New(pkgerrors.CodeConflict, "material is not available").
			WithDetails(map[string]any{
				"material_id": in.MaterialID,
				"status":      material.Status,
			})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"material_id": in.MaterialID,
			"requested":   in.Qty,
			"available":   material.Quantity,
		})
}

func (l *Ledger) loadMaterial(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	err := tx.WithContext(ctx).First(&material, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	return &material, nil
}

func (l *Ledger) findOrCreateDestination(ctx context.Context, tx *gorm.DB, source *models.Material, toWarehouseID uuid.UUID, qty int) (*models.Material, error) {
	var dest models.Material
	err := tx.WithContext(ctx).
		Where("name = ? AND warehouse_id = ?", source.Name, toWarehouseID).
		First(&dest).Error
	switch {
	case err == nil:
		res := tx.WithContext(ctx).Exec(`
			UPDATE materials
			SET quantity = quantity + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, qty, dest.ID)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment destination material")
		}
		dest.Quantity += qty
		return &dest, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		dest = models.Material{
			Name:        source.Name,
			Weight:      source.Weight,
			Quantity:    qty,
			Length:      cloneDecimal(source.Length),
			Width:       cloneDecimal(source.Width),
			Type:        cloneString(source.Type),
			Grammage:    cloneDecimal(source.Grammage),
			Quality:     cloneString(source.Quality),
			WarehouseID: toWarehouseID,
			Source:      cloneString(source.Source),
			Cost:        source.Cost,
			Status:      enums.MaterialStatusAvailable,
		}
		if err := tx.WithContext(ctx).Create(&dest).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create destination material")
		}
		return &dest, nil

	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load destination material")
	}
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
