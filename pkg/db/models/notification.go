package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

// Notification is one delivered event row for a user inbox.
type Notification struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Title       string                     `gorm:"column:title;not null" json:"title"`
	Message     string                     `gorm:"column:message;not null" json:"message"`
	Type        enums.NotificationType     `gorm:"column:type;type:text;not null" json:"type"`
	Priority    enums.NotificationPriority `gorm:"column:priority;type:text;not null;default:'medium'" json:"priority"`
	ReadAt      *time.Time                 `gorm:"column:read_at" json:"read_at,omitempty"`
	RelatedID   *uuid.UUID                 `gorm:"column:related_id;type:uuid" json:"related_id,omitempty"`
	RelatedType *string                    `gorm:"column:related_type" json:"related_type,omitempty"`
	Data        json.RawMessage            `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
