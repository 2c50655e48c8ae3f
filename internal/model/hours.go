package model

import "time"

type RuleKind string

const (
	RuleBase               RuleKind = "base"
	RuleExceptionalOpen    RuleKind = "exceptional_open"
	RuleExceptionalClosure RuleKind = "exceptional_closure"
)

// HoursRule is one local-time range of a venue-hours rule. A rule spanning
// several ranges is stored as several rows sharing kind and weekday/date.
// Start/end minutes count from local midnight; a full-day closure carries
// FullDay=true and zero minutes.
type HoursRule struct {
	ID          string
	Kind        RuleKind
	Weekday     time.Weekday // set for base rules
	Date        time.Time    // local midnight, set for exceptional rules
	FullDay     bool
	StartMinute int
	EndMinute   int
}

// BookingWindow bounds how far ahead (and behind) reservations may be
// requested. Both dates are local midnights, inclusive.
type BookingWindow struct {
	StartDate time.Time
	EndDate   time.Time
}
