package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// Repository exposes persistence helpers for invoices and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params listInvoicesParams) ([]models.Invoice, *pagination.Cursor, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	CreateItem(ctx context.Context, item *models.InvoiceItem) error
	FindItem(ctx context.Context, invoiceID, itemID uuid.UUID) (*models.InvoiceItem, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, fields map[string]any) (int64, error)
	DeleteItem(ctx context.Context, invoiceID, itemID uuid.UUID) (int64, error)
	DeleteItems(ctx context.Context, invoiceID uuid.UUID) error
	SumItems(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Stats aggregates the billing book.
type Stats struct {
	Total       int64           `json:"total"`
	Draft       int64           `json:"draft"`
	Approved    int64           `json:"approved"`
	Paid        int64           `json:"paid"`
	PaidRevenue decimal.Decimal `json:"paid_revenue"`
	TotalBilled decimal.Decimal `json:"total_billed"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an invoices repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listInvoicesParams struct {
	Status *enums.InvoiceStatus
	Search string
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Preload("Items").First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listInvoicesParams) ([]models.Invoice, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Invoice{}).Preload("Items")
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("customer_name LIKE ? OR invoice_number LIKE ?", like, like)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Invoice
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

func (r *repositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CreateItem(ctx context.Context, item *models.InvoiceItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repositoryImpl) FindItem(ctx context.Context, invoiceID, itemID uuid.UUID) (*models.InvoiceItem, error) {
	var item models.InvoiceItem
	err := r.db.WithContext(ctx).First(&item, "id = ? AND invoice_id = ?", itemID, invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) UpdateItem(ctx context.Context, itemID uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceItem{}).
		Where("id = ?", itemID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) DeleteItem(ctx context.Context, invoiceID, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND invoice_id = ?", itemID, invoiceID).
		Delete(&models.InvoiceItem{})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) DeleteItems(ctx context.Context, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&models.InvoiceItem{}).Error
}

func (r *repositoryImpl) SumItems(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var subtotal decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceItem{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("invoice_id = ?", invoiceID).
		Scan(&subtotal).Error
	return subtotal, err
}

func (r *repositoryImpl) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	type statusRow struct {
		Status enums.InvoiceStatus
		Count  int64
		Amount decimal.Decimal
	}
	var rows []statusRow
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalBilled = stats.TotalBilled.Add(row.Amount)
		switch row.Status {
		case enums.InvoiceStatusDraft:
			stats.Draft += row.Count
		case enums.InvoiceStatusApproved:
			stats.Approved += row.Count
		case enums.InvoiceStatusPaid:
			stats.Paid += row.Count
			stats.PaidRevenue = stats.PaidRevenue.Add(row.Amount)
		}
	}
	return stats, nil
}
