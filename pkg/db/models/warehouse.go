package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Warehouse is a physical storage location. Capacity is advisory only:
// utilization reporting compares it against stored weight, the core never
// rejects writes because a warehouse is full.
type Warehouse struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string           `gorm:"column:name;not null" json:"name"`
	Type      string           `gorm:"column:type;not null" json:"type"`
	Capacity  *decimal.Decimal `gorm:"column:capacity;type:numeric(12,2)" json:"capacity,omitempty"`
	Location  *string          `gorm:"column:location" json:"location,omitempty"`
	ManagerID *uuid.UUID       `gorm:"column:manager_id;type:uuid" json:"manager_id,omitempty"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
