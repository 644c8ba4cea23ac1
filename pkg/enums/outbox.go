package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateItem             OutboxAggregateType = "item"
	AggregateMaterialsToOrder OutboxAggregateType = "materials_to_order"
	AggregatePurchaseOrder    OutboxAggregateType = "purchase_order"
	AggregateNotification     OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateItem,
	AggregateMaterialsToOrder,
	AggregatePurchaseOrder,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventStockAdjusted       OutboxEventType = "stock_adjusted"
	EventReservationCreated  OutboxEventType = "reservation_created"
	EventReservationUpdated  OutboxEventType = "reservation_updated"
	EventReservationReleased OutboxEventType = "reservation_released"
	EventMTOCreated          OutboxEventType = "mto_created"
	EventMTOStatusChanged    OutboxEventType = "mto_status_changed"
	EventMTOMaterialsUsed    OutboxEventType = "mto_materials_used"
	EventPOCreated           OutboxEventType = "po_created"
	EventPOReceived          OutboxEventType = "po_received"
	EventPOCancelled         OutboxEventType = "po_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockAdjusted,
	EventReservationCreated,
	EventReservationUpdated,
	EventReservationReleased,
	EventMTOCreated,
	EventMTOStatusChanged,
	EventMTOMaterialsUsed,
	EventPOCreated,
	EventPOReceived,
	EventPOCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
