package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// StockMovement is the append-only audit record of a quantity change.
// Rows are never updated or deleted.
type StockMovement struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MaterialID    uuid.UUID             `gorm:"column:material_id;type:uuid;not null;index" json:"material_id"`
	WarehouseID   uuid.UUID             `gorm:"column:warehouse_id;type:uuid;not null;index" json:"warehouse_id"`
	MovementType  enums.MovementType    `gorm:"column:movement_type;type:text;not null" json:"movement_type"`
	Quantity      int                   `gorm:"column:quantity;not null" json:"quantity"`
	Weight        *decimal.Decimal      `gorm:"column:weight;type:numeric(12,2)" json:"weight,omitempty"`
	ReferenceID   *uuid.UUID            `gorm:"column:reference_id;type:uuid" json:"reference_id,omitempty"`
	ReferenceType enums.MovementRefType `gorm:"column:reference_type;type:text;not null" json:"reference_type"`
	Notes         *string               `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy     uuid.UUID             `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (s *StockMovement) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
