package enums

import "fmt"

// NotificationType names the event a notification row was fanned out from.
type NotificationType string

const (
	NotificationTypeNewOrder       NotificationType = "new_order"
	NotificationTypeInvoiceCreated NotificationType = "invoice_created"
	NotificationTypeLowStock       NotificationType = "low_stock"
	NotificationTypeCountApproved  NotificationType = "count_approved"
	NotificationTypeNewMaterial    NotificationType = "new_material"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewOrder,
	NotificationTypeInvoiceCreated,
	NotificationTypeLowStock,
	NotificationTypeCountApproved,
	NotificationTypeNewMaterial,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// IsValid reports whether the value is a known NotificationPriority.
func (n NotificationPriority) IsValid() bool {
	switch n {
	case NotificationPriorityLow, NotificationPriorityMedium, NotificationPriorityHigh:
		return true
	default:
		return false
	}
}
