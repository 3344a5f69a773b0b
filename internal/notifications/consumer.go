package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paperhouse/warehouse-backend/pkg/authz"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
)

type userLister interface {
	ListActiveByRoles(ctx context.Context, roles []enums.UserRole) ([]models.User, error)
}

// Consumer turns outbox events into inbox rows for every user whose role is
// allowed to act on the event.
type Consumer struct {
	repo  Repository
	users userLister
	logg  *logger.Logger
}

// NewConsumer wires the notification fan-out.
func NewConsumer(repo Repository, users userLister, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user lister required")
	}
	return &Consumer{repo: repo, users: users, logg: logg}, nil
}

// Name identifies the consumer in drain bookkeeping.
func (c *Consumer) Name() string {
	return "notifications"
}

type fanout struct {
	notifType enums.NotificationType
	cap       authz.Capability
	priority  enums.NotificationPriority
	title     string
}

var eventFanout = map[enums.OutboxEventType]fanout{
	enums.EventOrderCreated: {
		notifType: enums.NotificationTypeNewOrder,
		cap:       authz.CapOrdersView,
		priority:  enums.NotificationPriorityMedium,
		title:     "New order received",
	},
	enums.EventInvoiceCreated: {
		notifType: enums.NotificationTypeInvoiceCreated,
		cap:       authz.CapInvoicesView,
		priority:  enums.NotificationPriorityMedium,
		title:     "Invoice created",
	},
	enums.EventMaterialIntake: {
		notifType: enums.NotificationTypeNewMaterial,
		cap:       authz.CapMaterialsView,
		priority:  enums.NotificationPriorityLow,
		title:     "New material registered",
	},
	enums.EventLowStock: {
		notifType: enums.NotificationTypeLowStock,
		cap:       authz.CapMaterialsManage,
		priority:  enums.NotificationPriorityHigh,
		title:     "Material running low",
	},
	enums.EventCountApproved: {
		notifType: enums.NotificationTypeCountApproved,
		cap:       authz.CapCountsApprove,
		priority:  enums.NotificationPriorityMedium,
		title:     "Inventory count approved",
	},
}

// Handle fans one event out to the matching inboxes. Events with no mapping
// are acknowledged without writing anything.
func (c *Consumer) Handle(ctx context.Context, event models.OutboxEvent) error {
	mapping, ok := eventFanout[event.EventType]
	if !ok {
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload")
	}

	users, err := c.users.ListActiveByRoles(ctx, authz.RolesWith(mapping.cap))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipients")
	}

	relatedType := string(event.AggregateType)
	message := fmt.Sprintf("%s %s", event.AggregateType, event.AggregateID)
	for _, user := range users {
		// The actor already knows what they did.
		if envelope.Actor != nil && envelope.Actor.UserID == user.ID {
			continue
		}
		row := &models.Notification{
			UserID:      user.ID,
			Title:       mapping.title,
			Message:     message,
			Type:        mapping.notifType,
			Priority:    mapping.priority,
			RelatedID:   &event.AggregateID,
			RelatedType: &relatedType,
			Data:        envelope.Data,
		}
		if err := c.repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
		}
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"event_type": event.EventType,
			"recipients": len(users),
		}), "event fanned out")
	}
	return nil
}
