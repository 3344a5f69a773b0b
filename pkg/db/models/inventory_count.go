package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// InventoryCount records one physical count of a material. Variance is
// counted minus system at the time of recording; approval applies it to the
// material through the ledger.
type InventoryCount struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WarehouseID    uuid.UUID         `gorm:"column:warehouse_id;type:uuid;not null;index" json:"warehouse_id"`
	MaterialID     uuid.UUID         `gorm:"column:material_id;type:uuid;not null;index" json:"material_id"`
	CountedQty     int               `gorm:"column:counted_quantity;not null" json:"counted_quantity"`
	SystemQty      int               `gorm:"column:system_quantity;not null" json:"system_quantity"`
	Variance       int               `gorm:"column:variance;not null" json:"variance"`
	CountDate      time.Time         `gorm:"column:count_date;autoCreateTime" json:"count_date"`
	CountedBy      uuid.UUID         `gorm:"column:counted_by;type:uuid;not null" json:"counted_by"`
	Status         enums.CountStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Notes          *string           `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (c *InventoryCount) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
