package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// Order is a customer order whose items hold material reservations until the
// order completes or is removed.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber     string               `gorm:"column:order_number;uniqueIndex;not null" json:"order_number"`
	CustomerName    string               `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerPhone   *string              `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	CustomerAddress *string              `gorm:"column:customer_address" json:"customer_address,omitempty"`
	PlateCount      *int                 `gorm:"column:plate_count" json:"plate_count,omitempty"`
	Notes           *string              `gorm:"column:notes" json:"notes,omitempty"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null" json:"delivery_method"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	TotalAmount     decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	CuttingFee      decimal.Decimal      `gorm:"column:cutting_fee;type:numeric(10,2);not null" json:"cutting_fee"`
	CreatedBy       uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots one reserved material line. Quantity is the exact
// amount reserved from the material row, which makes reversal exact.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	MaterialID uuid.UUID       `gorm:"column:material_id;type:uuid;not null;index" json:"material_id"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	Weight     decimal.Decimal `gorm:"column:weight;type:numeric(12,2);not null" json:"weight"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,4);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null" json:"total_price"`
	Notes      *string         `gorm:"column:notes" json:"notes,omitempty"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
