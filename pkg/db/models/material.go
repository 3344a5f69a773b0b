package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// Material is a stock row owned by a single warehouse. Quantity and status
// are written only by the inventory ledger; every change is paired with a
// StockMovement row.
type Material struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string               `gorm:"column:name;not null;index" json:"name"`
	Weight        decimal.Decimal      `gorm:"column:weight;type:numeric(10,2);not null" json:"weight"`
	Quantity      int                  `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Length        *decimal.Decimal     `gorm:"column:length;type:numeric(10,2)" json:"length,omitempty"`
	Width         *decimal.Decimal     `gorm:"column:width;type:numeric(10,2)" json:"width,omitempty"`
	Type          *string              `gorm:"column:type" json:"type,omitempty"`
	Grammage      *decimal.Decimal     `gorm:"column:grammage;type:numeric(10,2)" json:"grammage,omitempty"`
	InvoiceNumber *string              `gorm:"column:invoice_number" json:"invoice_number,omitempty"`
	Quality       *string              `gorm:"column:quality" json:"quality,omitempty"`
	RollNumber    *string              `gorm:"column:roll_number" json:"roll_number,omitempty"`
	WarehouseID   uuid.UUID            `gorm:"column:warehouse_id;type:uuid;not null;index" json:"warehouse_id"`
	Source        *string              `gorm:"column:source" json:"source,omitempty"`
	Cost          decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null" json:"cost"`
	Status        enums.MaterialStatus `gorm:"column:status;type:text;not null;default:'available'" json:"status"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (m *Material) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
