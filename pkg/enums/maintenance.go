package enums

import "fmt"

// MaintenanceStatus tracks the lifecycle of a maintenance request.
type MaintenanceStatus string

const (
	MaintenanceStatusPending    MaintenanceStatus = "pending"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
	MaintenanceStatusCancelled  MaintenanceStatus = "cancelled"
)

var validMaintenanceStatuses = []MaintenanceStatus{
	MaintenanceStatusPending,
	MaintenanceStatusInProgress,
	MaintenanceStatusCompleted,
	MaintenanceStatusCancelled,
}

// String implements fmt.Stringer.
func (m MaintenanceStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MaintenanceStatus.
func (m MaintenanceStatus) IsValid() bool {
	for _, candidate := range validMaintenanceStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMaintenanceStatus converts raw input into a MaintenanceStatus.
func ParseMaintenanceStatus(value string) (MaintenanceStatus, error) {
	for _, candidate := range validMaintenanceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid maintenance status %q", value)
}

// MaintenancePriority ranks how urgently a request should be handled.
type MaintenancePriority string

const (
	MaintenancePriorityLow    MaintenancePriority = "low"
	MaintenancePriorityMedium MaintenancePriority = "medium"
	MaintenancePriorityHigh   MaintenancePriority = "high"
	MaintenancePriorityUrgent MaintenancePriority = "urgent"
)

// IsValid reports whether the value is a known MaintenancePriority.
func (m MaintenancePriority) IsValid() bool {
	switch m {
	case MaintenancePriorityLow, MaintenancePriorityMedium, MaintenancePriorityHigh, MaintenancePriorityUrgent:
		return true
	default:
		return false
	}
}

// ParseMaintenancePriority converts raw input into a MaintenancePriority.
func ParseMaintenancePriority(value string) (MaintenancePriority, error) {
	priority := MaintenancePriority(value)
	if !priority.IsValid() {
		return "", fmt.Errorf("invalid maintenance priority %q", value)
	}
	return priority, nil
}
