package model

import "time"

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Reservation is a confirmed claim on a table for a half-open time span.
// TableID is nil only for private-event attendees who hold no physical table.
type Reservation struct {
	ID          string
	TableID     *string
	StartTime   time.Time
	EndTime     time.Time
	PartySize   int
	Status      string
	GuestName   string
	GuestEmail  string
	GuestPhone  string
	EventID     *string
	CheckedInAt *time.Time
	CreatedAt   time.Time
}

// Table is admin-managed reference data.
type Table struct {
	ID       string
	Number   int
	Capacity int
}

// PrivateEvent blocks overlapping slots venue-wide while active, regardless
// of table occupancy. A full-day event removes the whole date.
type PrivateEvent struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
	FullDay   bool
	Status    string
}
