package allocator

import (
	"testing"
	"time"

	"github.com/mvannier/tablebook/internal/availability"
	"github.com/mvannier/tablebook/internal/model"
)

func at(h, m int) time.Time {
	return time.Date(2026, 9, 4, h, m, 0, 0, time.UTC)
}

func floorPlan() []model.Table {
	return []model.Table{
		{ID: "t6", Number: 4, Capacity: 6},
		{ID: "t2", Number: 1, Capacity: 2},
		{ID: "t4a", Number: 2, Capacity: 4},
		{ID: "t4b", Number: 3, Capacity: 4},
	}
}

func active(id, tableID string, start, end time.Time) model.Reservation {
	return model.Reservation{
		ID: id, TableID: &tableID, StartTime: start, EndTime: end,
		PartySize: 2, Status: model.StatusActive, GuestName: "g",
	}
}

func TestAssignSmallestFit(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}

	got := Assign(candidate, 3, floorPlan(), nil, nil, Exclusions{})
	if got == nil || got.ID != "t4a" {
		t.Fatalf("got %+v, want t4a (smallest fitting, lowest id)", got)
	}
}

func TestAssignSkipsOccupiedTable(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	reservations := []model.Reservation{
		active("r1", "t4a", at(18, 30), at(20, 30)),
	}

	got := Assign(candidate, 3, floorPlan(), reservations, nil, Exclusions{})
	if got == nil || got.ID != "t4b" {
		t.Fatalf("got %+v, want t4b", got)
	}
}

func TestAssignNoCapacity(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	if got := Assign(candidate, 8, floorPlan(), nil, nil, Exclusions{}); got != nil {
		t.Fatalf("got %+v, want nil for party of 8", got)
	}
}

func TestAssignBackToBackAllowed(t *testing.T) {
	candidate := availability.Interval{Start: at(20, 30), End: at(22, 0)}
	reservations := []model.Reservation{
		active("r1", "t2", at(19, 0), at(20, 30)),
	}

	got := Assign(candidate, 2, floorPlan(), reservations, nil, Exclusions{})
	if got == nil || got.ID != "t2" {
		t.Fatalf("got %+v, want t2 immediately after the previous seating", got)
	}
}

func TestAssignIgnoresCancelledAndTableless(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	tableID := "t2"
	reservations := []model.Reservation{
		{ID: "r1", TableID: &tableID, StartTime: at(19, 0), EndTime: at(20, 30),
			PartySize: 2, Status: model.StatusCancelled, GuestName: "g"},
		{ID: "r2", TableID: nil, StartTime: at(19, 0), EndTime: at(20, 30),
			PartySize: 2, Status: model.StatusActive, GuestName: "g"},
	}

	got := Assign(candidate, 2, floorPlan(), reservations, nil, Exclusions{})
	if got == nil || got.ID != "t2" {
		t.Fatalf("got %+v, want t2 despite cancelled and table-less rows", got)
	}
}

func TestAssignBlockedByPrivateEvent(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	events := []model.PrivateEvent{{
		ID: "ev1", Status: model.StatusActive,
		StartTime: at(20, 0), EndTime: at(22, 0),
	}}

	// The event blocks every table, even ones nobody reserved.
	if got := Assign(candidate, 2, floorPlan(), nil, events, Exclusions{}); got != nil {
		t.Fatalf("got %+v, want nil during the event", got)
	}
}

func TestAssignOwnEventNotBlocking(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	events := []model.PrivateEvent{{
		ID: "ev1", Status: model.StatusActive,
		StartTime: at(20, 0), EndTime: at(22, 0),
	}}

	got := Assign(candidate, 2, floorPlan(), nil, events, Exclusions{EventID: "ev1"})
	if got == nil || got.ID != "t2" {
		t.Fatalf("got %+v, want t2 for the event's own booking", got)
	}
}

func TestAssignOwnReservationNotBlocking(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 30), End: at(21, 0)}
	reservations := []model.Reservation{
		active("r1", "t2", at(19, 0), at(20, 30)),
	}

	got := Assign(candidate, 2, floorPlan(), reservations, nil, Exclusions{ReservationID: "r1"})
	if got == nil || got.ID != "t2" {
		t.Fatalf("got %+v, want t2 when moving the reservation itself", got)
	}
}

func TestAvailable(t *testing.T) {
	candidate := availability.Interval{Start: at(19, 0), End: at(21, 0)}
	if !Available(candidate, 2, floorPlan(), nil, nil, Exclusions{}) {
		t.Fatal("expected availability on an empty evening")
	}
	if Available(candidate, 10, floorPlan(), nil, nil, Exclusions{}) {
		t.Fatal("no table seats ten")
	}
}
