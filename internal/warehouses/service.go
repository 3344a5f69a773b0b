package warehouses

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockTransferer interface {
	Transfer(ctx context.Context, tx *gorm.DB, in ledger.TransferInput) (*ledger.TransferResult, error)
}

// Service manages warehouses and inter-warehouse stock transfers.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Warehouse, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	List(ctx context.Context, activeOnly bool) ([]models.Warehouse, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Warehouse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Utilization(ctx context.Context, id uuid.UUID) (*Utilization, error)
	Transfer(ctx context.Context, actorID uuid.UUID, input TransferInput) (*ledger.TransferResult, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger stockTransferer
}

// CreateInput registers a warehouse.
type CreateInput struct {
	Name      string           `json:"name" validate:"required"`
	Type      string           `json:"type" validate:"required"`
	Capacity  *decimal.Decimal `json:"capacity,omitempty"`
	Location  *string          `json:"location,omitempty"`
	ManagerID *uuid.UUID       `json:"manager_id,omitempty"`
}

// UpdateInput carries the mutable fields of a warehouse.
type UpdateInput struct {
	Name      *string          `json:"name,omitempty"`
	Type      *string          `json:"type,omitempty"`
	Capacity  *decimal.Decimal `json:"capacity,omitempty"`
	Location  *string          `json:"location,omitempty"`
	ManagerID *uuid.UUID       `json:"manager_id,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
}

// TransferInput moves stock of one material between two warehouses.
type TransferInput struct {
	MaterialID      uuid.UUID `json:"material_id" validate:"required"`
	FromWarehouseID uuid.UUID `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   uuid.UUID `json:"to_warehouse_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"gt=0"`
	Notes           *string   `json:"notes,omitempty"`
}

// Utilization reports how full a warehouse is. Percent is nil when the
// warehouse has no declared capacity.
type Utilization struct {
	Warehouse     *models.Warehouse `json:"warehouse"`
	MaterialCount int64             `json:"material_count"`
	TotalQuantity int64             `json:"total_quantity"`
	TotalWeight   decimal.Decimal   `json:"total_weight"`
	Percent       *decimal.Decimal  `json:"percent,omitempty"`
}

// NewService wires warehouse dependencies.
func NewService(tx txRunner, repo Repository, led stockTransferer) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "warehouses repository required")
	}
	if led == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger required")
	}
	return &service{tx: tx, repo: repo, ledger: led}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Warehouse, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse name required")
	}
	if strings.TrimSpace(input.Type) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse type required")
	}
	if input.Capacity != nil && input.Capacity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity cannot be negative")
	}

	warehouse := &models.Warehouse{
		Name:      name,
		Type:      strings.TrimSpace(input.Type),
		Capacity:  input.Capacity,
		Location:  input.Location,
		ManagerID: input.ManagerID,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, warehouse); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	warehouse, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse")
	}
	if warehouse == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
	}
	return warehouse, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.Warehouse, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Warehouse, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}

	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse name cannot be empty")
		}
		fields["name"] = name
	}
	if input.Type != nil {
		fields["type"] = strings.TrimSpace(*input.Type)
	}
	if input.Capacity != nil {
		if input.Capacity.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity cannot be negative")
		}
		fields["capacity"] = *input.Capacity
	}
	if input.Location != nil {
		fields["location"] = *input.Location
	}
	if input.ManagerID != nil {
		fields["manager_id"] = *input.ManagerID
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	affected, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update warehouse")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
	}
	return s.Get(ctx, id)
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	affected, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate warehouse")
	}
	if affected == 0 {
		warehouse, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load warehouse")
		}
		if warehouse == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "warehouse already inactive")
	}
	return nil
}

func (s *service) Utilization(ctx context.Context, id uuid.UUID) (*Utilization, error) {
	warehouse, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.StockSummary(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize warehouse stock")
	}

	result := &Utilization{
		Warehouse:     warehouse,
		MaterialCount: summary.MaterialCount,
		TotalQuantity: summary.TotalQuantity,
		TotalWeight:   summary.TotalWeight,
	}
	if warehouse.Capacity != nil && warehouse.Capacity.IsPositive() {
		percent := summary.TotalWeight.Div(*warehouse.Capacity).Mul(decimal.NewFromInt(100)).Round(2)
		result.Percent = &percent
	}
	return result, nil
}

func (s *service) Transfer(ctx context.Context, actorID uuid.UUID, input TransferInput) (*ledger.TransferResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if input.MaterialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ")
	}

	destination, err := s.Get(ctx, input.ToWarehouseID)
	if err != nil {
		return nil, err
	}
	if !destination.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "destination warehouse is inactive")
	}
	if _, err := s.Get(ctx, input.FromWarehouseID); err != nil {
		return nil, err
	}

	var result *ledger.TransferResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.ledger.Transfer(ctx, tx, ledger.TransferInput{
			MaterialID:      input.MaterialID,
			FromWarehouseID: input.FromWarehouseID,
			ToWarehouseID:   input.ToWarehouseID,
			Qty:             input.Quantity,
			ActorID:         actorID,
			Notes:           input.Notes,
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
