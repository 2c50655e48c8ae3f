// Package schedule turns venue-hours rules, booking-window bounds and
// private-event blocks into the bookable UTC windows for a calendar date.
package schedule

import (
	"errors"
	"time"

	"github.com/mvannier/tablebook/internal/availability"
	"github.com/mvannier/tablebook/internal/model"
)

var (
	// ErrOutsideWindow means the date falls outside the active booking window.
	ErrOutsideWindow = errors.New("date outside booking window")
	// ErrClosed means a full-day closure or full-day private event removes the date.
	ErrClosed = errors.New("venue closed for date")
)

// Resolver computes day windows in the venue's fixed time zone. Venue-hours
// ranges are defined in local clock minutes and converted to UTC here, since
// local-time interval arithmetic is not safe across DST transitions.
type Resolver struct {
	Location *time.Location
}

// DayStart returns the local midnight for a date in the venue zone.
func (r *Resolver) DayStart(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, r.Location)
}

// DayRange returns the UTC span covered by the local date.
func (r *Resolver) DayRange(day time.Time) availability.Interval {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.Location)
	return availability.Interval{Start: start.UTC(), End: start.AddDate(0, 0, 1).UTC()}
}

// Resolve produces the bookable UTC windows for the local date `day`.
//
// Precedence: booking window, then full-day closures and full-day private
// events, then exceptional-open ranges (which replace the weekday's base
// ranges entirely), then partial-day closure subtraction. A date with no
// applicable rule simply has no availability; that is a normal outcome, not
// an error. Partial-day private events are not subtracted here — they block
// individual candidates in the allocator, where a candidate tied to the
// event's own reservation must survive.
func (r *Resolver) Resolve(day time.Time, rules []model.HoursRule, window *model.BookingWindow, events []model.PrivateEvent) ([]availability.Interval, error) {
	// Window bounds compare as calendar dates: the window's dates and the
	// local day may carry different zone offsets.
	if window != nil {
		if dateBefore(day, window.StartDate) || dateBefore(window.EndDate, day) {
			return nil, ErrOutsideWindow
		}
	}

	dayRange := r.DayRange(day)
	for _, ev := range events {
		if ev.Status != model.StatusActive || !ev.FullDay {
			continue
		}
		if dayRange.Overlaps(availability.Interval{Start: ev.StartTime, End: ev.EndTime}) {
			return nil, ErrClosed
		}
	}

	var base, closures []model.HoursRule
	var hasExceptionalOpen bool
	for _, rule := range rules {
		switch rule.Kind {
		case model.RuleExceptionalClosure:
			if !sameDate(rule.Date, day) {
				continue
			}
			if rule.FullDay {
				return nil, ErrClosed
			}
			closures = append(closures, rule)
		case model.RuleExceptionalOpen:
			if sameDate(rule.Date, day) {
				if !hasExceptionalOpen {
					hasExceptionalOpen = true
					base = base[:0]
				}
				base = append(base, rule)
			}
		case model.RuleBase:
			if !hasExceptionalOpen && rule.Weekday == day.Weekday() {
				base = append(base, rule)
			}
		}
	}
	if len(base) == 0 {
		return nil, nil
	}

	blocks := make([]availability.Interval, 0, len(closures))
	for _, c := range closures {
		blocks = append(blocks, r.clockInterval(day, c.StartMinute, c.EndMinute))
	}

	var windows []availability.Interval
	for _, b := range base {
		iv := r.clockInterval(day, b.StartMinute, b.EndMinute)
		if !iv.Valid() {
			continue
		}
		for _, piece := range availability.Subtract(iv, blocks) {
			if piece.Valid() {
				windows = append(windows, piece)
			}
		}
	}
	availability.SortByStart(windows)
	return windows, nil
}

// clockInterval converts local clock minutes on a date to a UTC interval.
// time.Date normalizes the wall clock through the location, which keeps
// 18:00 local meaning 18:00 local on DST transition days.
func (r *Resolver) clockInterval(day time.Time, startMin, endMin int) availability.Interval {
	start := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, r.Location)
	end := time.Date(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, 0, 0, r.Location)
	return availability.Interval{Start: start.UTC(), End: end.UTC()}
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
