package warehouses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
)

// Repository exposes persistence helpers for warehouses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, warehouse *models.Warehouse) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	List(ctx context.Context, activeOnly bool) ([]models.Warehouse, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) (int64, error)
	StockSummary(ctx context.Context, id uuid.UUID) (*StockSummary, error)
}

// StockSummary aggregates the contents of one warehouse.
type StockSummary struct {
	MaterialCount int64           `json:"material_count"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalWeight   decimal.Decimal `json:"total_weight"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a warehouse repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).First(&warehouse, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &warehouse, nil
}

func (r *repositoryImpl) List(ctx context.Context, activeOnly bool) ([]models.Warehouse, error) {
	query := r.db.WithContext(ctx).Model(&models.Warehouse{}).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.Warehouse
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Warehouse{}).
		Where("id = ?", id).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Warehouse{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) StockSummary(ctx context.Context, id uuid.UUID) (*StockSummary, error) {
	var row struct {
		MaterialCount int64
		TotalQuantity int64
		TotalWeight   decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Material{}).
		Select("COUNT(*) AS material_count, COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(weight), 0) AS total_weight").
		Where("warehouse_id = ?", id).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &StockSummary{
		MaterialCount: row.MaterialCount,
		TotalQuantity: row.TotalQuantity,
		TotalWeight:   row.TotalWeight,
	}, nil
}
