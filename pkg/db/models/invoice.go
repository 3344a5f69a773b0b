package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// Invoice bills a completed order. Subtotal, tax and total are derived from
// the item rows and must never be written outside the recompute path.
type Invoice struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceNumber   string              `gorm:"column:invoice_number;uniqueIndex;not null" json:"invoice_number"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_invoices_order_id" json:"order_id"`
	CustomerName    string              `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerPhone   *string             `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	CustomerAddress *string             `gorm:"column:customer_address" json:"customer_address,omitempty"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	CuttingFee      decimal.Decimal     `gorm:"column:cutting_fee;type:numeric(10,2);not null" json:"cutting_fee"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(10,2);not null" json:"discount"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(10,2);not null" json:"tax"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	Status          enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'draft'" json:"status"`
	Notes           *string             `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy       uuid.UUID           `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ApprovedBy      *uuid.UUID          `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time          `gorm:"column:approved_at" json:"approved_at,omitempty"`
	PaidAt          *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	Items           []InvoiceItem       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceItem is one billed line. MaterialID is an optional back-link; the
// name and price are snapshots so later material edits never change a bill.
type InvoiceItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceID    uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index" json:"invoice_id"`
	MaterialName string          `gorm:"column:material_name;not null" json:"material_name"`
	Description  string          `gorm:"column:description;not null;default:''" json:"description"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice   decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null" json:"total_price"`
	MaterialID   *uuid.UUID      `gorm:"column:material_id;type:uuid" json:"material_id,omitempty"`
	Notes        *string         `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (i *InvoiceItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
