// Package allocator decides which physical table, if any, can host a
// candidate reservation interval.
package allocator

import (
	"sort"

	"github.com/mvannier/tablebook/internal/availability"
	"github.com/mvannier/tablebook/internal/model"
)

// Exclusions identify a reservation being edited or re-confirmed so that its
// own interval, and its own private event, never count as conflicts against it.
type Exclusions struct {
	ReservationID string
	EventID       string
}

// Assign returns the table committed to a candidate interval, or nil when the
// candidate cannot be hosted.
//
// A candidate overlapping any active private event is rejected outright —
// events block slots venue-wide, regardless of table occupancy — unless the
// event is the candidate's own. Among tables seating the party, the lowest
// capacity wins (ties by table ID), so large tables stay free for large
// parties; the first such table with no overlapping active reservation is
// committed.
func Assign(candidate availability.Interval, partySize int, tables []model.Table, reservations []model.Reservation, events []model.PrivateEvent, excl Exclusions) *model.Table {
	if blockedByEvent(candidate, events, excl.EventID) {
		return nil
	}

	fitting := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if t.Capacity >= partySize {
			fitting = append(fitting, t)
		}
	}
	sort.Slice(fitting, func(i, j int) bool {
		if fitting[i].Capacity != fitting[j].Capacity {
			return fitting[i].Capacity < fitting[j].Capacity
		}
		return fitting[i].ID < fitting[j].ID
	})

	for i := range fitting {
		if tableFree(fitting[i].ID, candidate, reservations, excl.ReservationID) {
			return &fitting[i]
		}
	}
	return nil
}

// Available reports whether any table can host the candidate.
func Available(candidate availability.Interval, partySize int, tables []model.Table, reservations []model.Reservation, events []model.PrivateEvent, excl Exclusions) bool {
	return Assign(candidate, partySize, tables, reservations, events, excl) != nil
}

func blockedByEvent(candidate availability.Interval, events []model.PrivateEvent, ownEventID string) bool {
	for _, ev := range events {
		if ev.Status != model.StatusActive {
			continue
		}
		if ownEventID != "" && ev.ID == ownEventID {
			continue
		}
		if candidate.Overlaps(availability.Interval{Start: ev.StartTime, End: ev.EndTime}) {
			return true
		}
	}
	return false
}

func tableFree(tableID string, candidate availability.Interval, reservations []model.Reservation, ownReservationID string) bool {
	for _, res := range reservations {
		if res.Status != model.StatusActive || res.TableID == nil || *res.TableID != tableID {
			continue
		}
		if ownReservationID != "" && res.ID == ownReservationID {
			continue
		}
		if candidate.Overlaps(availability.Interval{Start: res.StartTime, End: res.EndTime}) {
			return false
		}
	}
	return true
}
