package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the booking engine.
const (
	EventBookingAssigned = "clinic.booking.assigned.v1"
	EventBookingReminder = "clinic.booking.reminder.v1"
	EventSlotReleased    = "clinic.booking.released.v1"
)
