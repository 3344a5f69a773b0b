package counts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// Repository exposes persistence helpers for inventory counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, count *models.InventoryCount) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryCount, error)
	List(ctx context.Context, params listCountsParams) ([]models.InventoryCount, *pagination.Cursor, error)
	MarkApproved(ctx context.Context, id uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a counts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listCountsParams struct {
	WarehouseID *uuid.UUID
	MaterialID  *uuid.UUID
	Status      *enums.CountStatus
	Limit       int
	Cursor      *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, count *models.InventoryCount) error {
	return r.db.WithContext(ctx).Create(count).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryCount, error) {
	var count models.InventoryCount
	err := r.db.WithContext(ctx).First(&count, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &count, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listCountsParams) ([]models.InventoryCount, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.InventoryCount{})
	if params.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *params.WarehouseID)
	}
	if params.MaterialID != nil {
		query = query.Where("material_id = ?", *params.MaterialID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.InventoryCount
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	if len(rows) <= normalized {
		return rows, nil, nil
	}
	rows = rows[:normalized]
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (r *repositoryImpl) MarkApproved(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryCount{}).
		Where("id = ? AND status = ?", id, enums.CountStatusPending).
		Update("status", enums.CountStatusApproved)
	return result.RowsAffected, result.Error
}
