package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/mvannier/tablebook/internal/model"
)

func utcResolver() *Resolver {
	return &Resolver{Location: time.UTC}
}

func baseRule(weekday time.Weekday, startMin, endMin int) model.HoursRule {
	return model.HoursRule{ID: "base", Kind: model.RuleBase, Weekday: weekday, StartMinute: startMin, EndMinute: endMin}
}

func TestResolveBaseHours(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)

	windows, err := r.Resolve(friday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if !windows[0].Start.Equal(time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)) ||
		!windows[0].End.Equal(time.Date(2026, 9, 4, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("window = %+v", windows[0])
	}
}

func TestResolveNoRulesForDay(t *testing.T) {
	r := utcResolver()
	// Saturday has no base rule: no availability, no error.
	saturday := r.DayStart(2026, time.September, 5)
	windows, err := r.Resolve(saturday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("got %d windows, want 0", len(windows))
	}
}

func TestResolvePartialClosureSplitsHours(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	rules := []model.HoursRule{
		baseRule(time.Friday, 18*60, 23*60),
		{ID: "c1", Kind: model.RuleExceptionalClosure, Date: friday, StartMinute: 20 * 60, EndMinute: 21 * 60},
	}

	windows, err := r.Resolve(friday, rules, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2: %+v", len(windows), windows)
	}
	if !windows[0].End.Equal(time.Date(2026, 9, 4, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("first window ends %v, want 20:00", windows[0].End)
	}
	if !windows[1].Start.Equal(time.Date(2026, 9, 4, 21, 0, 0, 0, time.UTC)) {
		t.Fatalf("second window starts %v, want 21:00", windows[1].Start)
	}
}

func TestResolveFullDayClosure(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	rules := []model.HoursRule{
		baseRule(time.Friday, 18*60, 23*60),
		{ID: "c1", Kind: model.RuleExceptionalClosure, Date: friday, FullDay: true},
	}

	if _, err := r.Resolve(friday, rules, nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestResolveExceptionalOpenReplacesBase(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	rules := []model.HoursRule{
		baseRule(time.Friday, 18*60, 23*60),
		{ID: "o1", Kind: model.RuleExceptionalOpen, Date: friday, StartMinute: 11 * 60, EndMinute: 14 * 60},
	}

	windows, err := r.Resolve(friday, rules, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1: %+v", len(windows), windows)
	}
	// The special hours replace, not extend, the weekday's base hours.
	if !windows[0].Start.Equal(time.Date(2026, 9, 4, 11, 0, 0, 0, time.UTC)) ||
		!windows[0].End.Equal(time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("window = %+v", windows[0])
	}
}

func TestResolveOutsideBookingWindow(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	window := &model.BookingWindow{
		StartDate: r.DayStart(2026, time.October, 1),
		EndDate:   r.DayStart(2026, time.October, 31),
	}

	_, err := r.Resolve(friday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, window, nil)
	if !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("got %v, want ErrOutsideWindow", err)
	}
}

func TestResolveWindowLastDayInclusive(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	r := &Resolver{Location: loc}
	friday := r.DayStart(2026, time.September, 4)
	// Window dates come from the database as UTC midnights; the local day
	// starts hours later but the calendar date still falls inside.
	window := &model.BookingWindow{
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
	}

	windows, err := r.Resolve(friday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, window, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1 on the window's last day", len(windows))
	}
}

func TestResolveFullDayEventClosesDay(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	events := []model.PrivateEvent{{
		ID: "ev1", Status: model.StatusActive, FullDay: true,
		StartTime: friday, EndTime: friday.AddDate(0, 0, 1),
	}}

	_, err := r.Resolve(friday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, nil, events)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestResolvePartialEventDoesNotCloseDay(t *testing.T) {
	r := utcResolver()
	friday := r.DayStart(2026, time.September, 4)
	events := []model.PrivateEvent{{
		ID: "ev1", Status: model.StatusActive,
		StartTime: time.Date(2026, 9, 4, 20, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 4, 22, 0, 0, 0, time.UTC),
	}}

	// Partial events block slots in the allocator, not here.
	windows, err := r.Resolve(friday, []model.HoursRule{baseRule(time.Friday, 18*60, 23*60)}, nil, events)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
}

func TestResolveLocalHoursAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	r := &Resolver{Location: loc}

	// 2026-03-08 is the spring-forward Sunday in New York (EST -> EDT).
	sunday := r.DayStart(2026, time.March, 8)
	windows, err := r.Resolve(sunday, []model.HoursRule{baseRule(time.Sunday, 18*60, 23*60)}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	// 18:00 local is EDT after the transition: 22:00 UTC, not 23:00.
	if !windows[0].Start.Equal(time.Date(2026, 3, 8, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v, want 22:00 UTC", windows[0].Start)
	}
	if windows[0].End.Sub(windows[0].Start) != 5*time.Hour {
		t.Fatalf("span = %v, want 5h of local wall-clock hours", windows[0].End.Sub(windows[0].Start))
	}
}
