package counts

import (
	"context"
	"errors"

	"github.com/google/uuid"
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

type stockAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, in ledger.AdjustInput) error
}

// Service records physical inventory counts and applies approved variances.
type Service interface {
	Record(ctx context.Context, actorID uuid.UUID, input RecordInput) (*models.InventoryCount, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryCount, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Approve(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.InventoryCount, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger stockAdjuster
	outbox outboxPublisher
}

// RecordInput captures one physical count of a material.
type RecordInput struct {
	MaterialID uuid.UUID `json:"material_id" validate:"required"`
	CountedQty int       `json:"counted_quantity" validate:"gte=0"`
	Notes      *string   `json:"notes,omitempty"`
}

// ListParams filters recorded counts.
type ListParams struct {
	WarehouseID *uuid.UUID
	MaterialID  *uuid.UUID
	Status      *enums.CountStatus
	Limit       int
	Cursor      string
}

// ListResult wraps returned counts and the cursor for the next page.
type ListResult struct {
	Items  []models.InventoryCount `json:"items"`
	Cursor string                  `json:"cursor"`
}

// NewService wires inventory count dependencies.
func NewService(tx txRunner, repo Repository, led stockAdjuster, publisher outboxPublisher) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "counts repository required")
	}
	if led == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{tx: tx, repo: repo, ledger: led, outbox: publisher}, nil
}

// Record snapshots the system quantity at the moment of counting. The
// variance is frozen on the row; approval later reconciles against whatever
// the system holds at that time.
func (s *service) Record(ctx context.Context, actorID uuid.UUID, input RecordInput) (*models.InventoryCount, error) {
	if input.MaterialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.CountedQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted quantity cannot be negative")
	}

	count := &models.InventoryCount{
		MaterialID: input.MaterialID,
		CountedQty: input.CountedQty,
		CountedBy:  actorID,
		Status:     enums.CountStatusPending,
		Notes:      input.Notes,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var material models.Material
		err := tx.WithContext(ctx).First(&material, "id = ?", input.MaterialID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
		}
		count.WarehouseID = material.WarehouseID
		count.SystemQty = material.Quantity
		count.Variance = input.CountedQty - material.Quantity
		return s.repo.WithTx(tx).Create(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryCount, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count id required")
	}
	count, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load count")
	}
	if count == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "count not found")
	}
	return count, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listCountsParams{
		WarehouseID: params.WarehouseID,
		MaterialID:  params.MaterialID,
		Status:      params.Status,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list counts")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Approve flips a pending count to approved and applies the counted quantity
// to the material. The status flip is a guarded update so a count can only be
// applied once, even under concurrent approvals.
func (s *service) Approve(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.InventoryCount, error) {
	count, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if count.Status != enums.CountStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "count already approved")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.MarkApproved(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve count")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "count already approved")
		}
		if err := s.ledger.Adjust(ctx, tx, ledger.AdjustInput{
			MaterialID: count.MaterialID,
			CountedQty: count.CountedQty,
			ActorID:    actorID,
			Ref:        ledger.CountRef(count.ID),
			Notes:      count.Notes,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCountApproved,
			AggregateType: enums.AggregateInventoryCount,
			AggregateID:   count.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: map[string]any{
				"count_id":    count.ID,
				"material_id": count.MaterialID,
				"counted":     count.CountedQty,
				"variance":    count.Variance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
