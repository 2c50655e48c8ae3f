package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventReservationCreated   = "reservation.created.v1"
	EventReservationCancelled = "reservation.cancelled.v1"
	EventReservationModified  = "reservation.modified.v1"
)
