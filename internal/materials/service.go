package materials

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	RecordIntake(ctx context.Context, tx *gorm.DB, material *models.Material, actorID uuid.UUID) error
	Reserve(ctx context.Context, tx *gorm.DB, in ledger.ReserveInput) error
	Release(ctx context.Context, tx *gorm.DB, in ledger.ReleaseInput) error
}

// Service defines material registration and catalogue operations. Quantity
// and status writes stay inside the ledger; this service only touches
// descriptive fields.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Material, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Material, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Material, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.MaterialStatus) (*models.Material, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reserve(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input HoldInput) (*models.Material, error)
	Release(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input HoldInput) (*models.Material, error)
	Movements(ctx context.Context, params MovementParams) (*MovementResult, error)
	LowStock(ctx context.Context, threshold int) ([]models.Material, error)
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger stockLedger
	outbox outboxPublisher
}

// HoldInput carries a manual reservation or release of stock.
type HoldInput struct {
	Quantity int     `json:"quantity" validate:"gt=0"`
	Notes    *string `json:"notes,omitempty"`
}

// CreateInput captures a material intake.
type CreateInput struct {
	Name          string           `json:"name" validate:"required"`
	Weight        decimal.Decimal  `json:"weight" validate:"required"`
	Quantity      int              `json:"quantity" validate:"gte=0"`
	Length        *decimal.Decimal `json:"length,omitempty"`
	Width         *decimal.Decimal `json:"width,omitempty"`
	Type          *string          `json:"type,omitempty"`
	Grammage      *decimal.Decimal `json:"grammage,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	Quality       *string          `json:"quality,omitempty"`
	RollNumber    *string          `json:"roll_number,omitempty"`
	WarehouseID   uuid.UUID        `json:"warehouse_id" validate:"required"`
	Source        *string          `json:"source,omitempty"`
	Cost          decimal.Decimal  `json:"cost" validate:"required"`
}

// UpdateInput carries the mutable descriptive fields of a material.
type UpdateInput struct {
	Name          *string          `json:"name,omitempty"`
	Weight        *decimal.Decimal `json:"weight,omitempty"`
	Length        *decimal.Decimal `json:"length,omitempty"`
	Width         *decimal.Decimal `json:"width,omitempty"`
	Type          *string          `json:"type,omitempty"`
	Grammage      *decimal.Decimal `json:"grammage,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	Quality       *string          `json:"quality,omitempty"`
	RollNumber    *string          `json:"roll_number,omitempty"`
	Source        *string          `json:"source,omitempty"`
	Cost          *decimal.Decimal `json:"cost,omitempty"`
}

// ListParams filters the material catalogue.
type ListParams struct {
	WarehouseID *uuid.UUID
	Status      *enums.MaterialStatus
	Type        *string
	Search      string
	Limit       int
	Cursor      string
}

// ListResult wraps returned materials and the cursor for the next page.
type ListResult struct {
	Items  []models.Material `json:"items"`
	Cursor string            `json:"cursor"`
}

// MovementParams filters the movement audit trail.
type MovementParams struct {
	MaterialID  *uuid.UUID
	WarehouseID *uuid.UUID
	Limit       int
	Cursor      string
}

// MovementResult wraps returned movements and the cursor for the next page.
type MovementResult struct {
	Items  []models.StockMovement `json:"items"`
	Cursor string                 `json:"cursor"`
}

// NewService wires material dependencies.
func NewService(tx txRunner, repo Repository, led stockLedger, publisher outboxPublisher) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materials repository required")
	}
	if led == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{tx: tx, repo: repo, ledger: led, outbox: publisher}, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Material, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.Cost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot be negative")
	}

	material := &models.Material{
		Name:          strings.TrimSpace(input.Name),
		Weight:        input.Weight,
		Quantity:      input.Quantity,
		Length:        input.Length,
		Width:         input.Width,
		Type:          input.Type,
		Grammage:      input.Grammage,
		InvoiceNumber: input.InvoiceNumber,
		Quality:       input.Quality,
		RollNumber:    input.RollNumber,
		WarehouseID:   input.WarehouseID,
		Source:        input.Source,
		Cost:          input.Cost,
		Status:        enums.MaterialStatusAvailable,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, material); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material")
		}
		if err := s.ledger.RecordIntake(ctx, tx, material, actorID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMaterialIntake,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   material.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: map[string]any{
				"material_id": material.ID,
				"name":        material.Name,
				"quantity":    material.Quantity,
				"warehouse":   material.WarehouseID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return material, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	if material == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return material, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listMaterialsParams{
		WarehouseID: params.WarehouseID,
		Status:      params.Status,
		Type:        params.Type,
		Search:      params.Search,
		Limit:       params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}

	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name cannot be empty")
		}
		fields["name"] = name
	}
	if input.Weight != nil {
		fields["weight"] = *input.Weight
	}
	if input.Length != nil {
		fields["length"] = *input.Length
	}
	if input.Width != nil {
		fields["width"] = *input.Width
	}
	if input.Type != nil {
		fields["type"] = *input.Type
	}
	if input.Grammage != nil {
		fields["grammage"] = *input.Grammage
	}
	if input.InvoiceNumber != nil {
		fields["invoice_number"] = *input.InvoiceNumber
	}
	if input.Quality != nil {
		fields["quality"] = *input.Quality
	}
	if input.RollNumber != nil {
		fields["roll_number"] = *input.RollNumber
	}
	if input.Source != nil {
		fields["source"] = *input.Source
	}
	if input.Cost != nil {
		if input.Cost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot be negative")
		}
		fields["cost"] = *input.Cost
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	affected, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return s.Get(ctx, id)
}

// SetStatus patches the availability flag directly. Reserved is excluded:
// holds go through the ledger so the movement trail stays complete.
func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.MaterialStatus) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown material status")
	}
	if status == enums.MaterialStatusReserved {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve stock through an order or a hold")
	}

	affected, err := s.repo.UpdateFields(ctx, id, map[string]any{"status": status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material status")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}

	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	if material == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	if material.Status == enums.MaterialStatusReserved {
		return pkgerrors.New(pkgerrors.CodeConflict, "material is reserved by an order")
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete material")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return nil
}

// Reserve places a manual hold on stock outside of any order.
func (s *service) Reserve(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input HoldInput) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.Reserve(ctx, tx, ledger.ReserveInput{
			MaterialID: id,
			Qty:        input.Quantity,
			ActorID:    actorID,
			Ref:        ledger.ManualRef(),
			Notes:      input.Notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Release returns quantity to a material and flips it back to available.
func (s *service) Release(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input HoldInput) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.Release(ctx, tx, ledger.ReleaseInput{
			MaterialID: id,
			Qty:        input.Quantity,
			ActorID:    actorID,
			Ref:        ledger.ManualRef(),
			Notes:      input.Notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Movements(ctx context.Context, params MovementParams) (*MovementResult, error) {
	query := listMovementsParams{
		MaterialID:  params.MaterialID,
		WarehouseID: params.WarehouseID,
		Limit:       params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &MovementResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) LowStock(ctx context.Context, threshold int) ([]models.Material, error) {
	if threshold <= 0 {
		threshold = 10
	}
	rows, err := s.repo.LowStock(ctx, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock materials")
	}
	return rows, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate material stats")
	}
	return stats, nil
}
