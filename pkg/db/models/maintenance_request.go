package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// MaintenanceRequest tracks repair work requested for a warehouse.
type MaintenanceRequest struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WarehouseID   uuid.UUID                 `gorm:"column:warehouse_id;type:uuid;not null;index" json:"warehouse_id"`
	Title         string                    `gorm:"column:title;not null" json:"title"`
	Description   string                    `gorm:"column:description;not null" json:"description"`
	Priority      enums.MaintenancePriority `gorm:"column:priority;type:text;not null;default:'medium'" json:"priority"`
	Status        enums.MaintenanceStatus   `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	RequestedBy   uuid.UUID                 `gorm:"column:requested_by;type:uuid;not null" json:"requested_by"`
	AssignedTo    *uuid.UUID                `gorm:"column:assigned_to;type:uuid" json:"assigned_to,omitempty"`
	ScheduledDate *time.Time                `gorm:"column:scheduled_date" json:"scheduled_date,omitempty"`
	CompletedDate *time.Time                `gorm:"column:completed_date" json:"completed_date,omitempty"`
	EstimatedCost *decimal.Decimal          `gorm:"column:estimated_cost;type:numeric(10,2)" json:"estimated_cost,omitempty"`
	ActualCost    *decimal.Decimal          `gorm:"column:actual_cost;type:numeric(10,2)" json:"actual_cost,omitempty"`
	Notes         *string                   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (m *MaintenanceRequest) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
