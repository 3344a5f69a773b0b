package materials

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// Repository exposes persistence helpers for materials and their movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, material *models.Material) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
	List(ctx context.Context, params listMaterialsParams) ([]models.Material, *pagination.Cursor, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error)
	LowStock(ctx context.Context, threshold int) ([]models.Material, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Stats aggregates the material catalogue by status.
type Stats struct {
	Total         int64           `json:"total"`
	Available     int64           `json:"available"`
	Reserved      int64           `json:"reserved"`
	Damaged       int64           `json:"damaged"`
	Expired       int64           `json:"expired"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a materials repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listMaterialsParams struct {
	WarehouseID *uuid.UUID
	Status      *enums.MaterialStatus
	Type        *string
	Search      string
	Limit       int
	Cursor      *pagination.Cursor
}

type listMovementsParams struct {
	MaterialID  *uuid.UUID
	WarehouseID *uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, material *models.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &material, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listMaterialsParams) ([]models.Material, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Material{})
	if params.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *params.WarehouseID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Material
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) <= normalized {
		return rows, nil, nil
	}
	rows = rows[:normalized]
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Material{}).
		Where("id = ?", id).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Material{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if params.MaterialID != nil {
		query = query.Where("material_id = ?", *params.MaterialID)
	}
	if params.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *params.WarehouseID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.StockMovement
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) <= normalized {
		return rows, nil, nil
	}
	rows = rows[:normalized]
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (r *repositoryImpl) LowStock(ctx context.Context, threshold int) ([]models.Material, error) {
	var rows []models.Material
	err := r.db.WithContext(ctx).
		Where("quantity <= ? AND status = ?", threshold, enums.MaterialStatusAvailable).
		Order("quantity ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	type statusCount struct {
		Status enums.MaterialStatus
		Count  int64
	}
	var counts []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Material{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, row := range counts {
		stats.Total += row.Count
		switch row.Status {
		case enums.MaterialStatusAvailable:
			stats.Available += row.Count
		case enums.MaterialStatusReserved:
			stats.Reserved += row.Count
		case enums.MaterialStatusDamaged:
			stats.Damaged += row.Count
		case enums.MaterialStatusExpired:
			stats.Expired += row.Count
		}
	}

	type totalsRow struct {
		TotalQuantity int64
		TotalValue    decimal.Decimal
	}
	var totals totalsRow
	err = r.db.WithContext(ctx).
		Model(&models.Material{}).
		Select("COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(cost), 0) AS total_value").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	stats.TotalQuantity = totals.TotalQuantity
	stats.TotalValue = totals.TotalValue
	return stats, nil
}
