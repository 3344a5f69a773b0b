package enums

// OutboxEventType names a domain event queued through the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderCompleted OutboxEventType = "order.completed"
	EventOrderDeleted   OutboxEventType = "order.deleted"
	EventInvoiceCreated OutboxEventType = "invoice.created"
	EventMaterialIntake OutboxEventType = "material.intake"
	EventLowStock       OutboxEventType = "material.low_stock"
	EventCountApproved  OutboxEventType = "inventory_count.approved"
)

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	switch o {
	case EventOrderCreated, EventOrderCompleted, EventOrderDeleted,
		EventInvoiceCreated, EventMaterialIntake, EventLowStock, EventCountApproved:
		return true
	default:
		return false
	}
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateInvoice        OutboxAggregateType = "invoice"
	AggregateMaterial       OutboxAggregateType = "material"
	AggregateInventoryCount OutboxAggregateType = "inventory_count"
)

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	switch o {
	case AggregateOrder, AggregateInvoice, AggregateMaterial, AggregateInventoryCount:
		return true
	default:
		return false
	}
}
