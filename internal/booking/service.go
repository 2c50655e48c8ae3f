// Package booking orchestrates the availability engine: it resolves a date's
// bookable windows, expands them into candidate slots, consults the table
// allocator, and commits reservations under the no-double-booking guarantee.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mvannier/tablebook/internal/allocator"
	"github.com/mvannier/tablebook/internal/availability"
	"github.com/mvannier/tablebook/internal/model"
	"github.com/mvannier/tablebook/internal/schedule"
	"github.com/mvannier/tablebook/internal/storage"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrOutsideBookingWindow = errors.New("outside booking window")
	ErrVenueClosed          = errors.New("venue closed")
	ErrNoTableAvailable     = errors.New("no table available")
	ErrNotFound             = errors.New("reservation not found")
)

// maxCommitAttempts bounds how many candidate tables a single booking request
// will try after losing commit races before giving up.
const maxCommitAttempts = 5

// nextOpenHorizon is how far forward the next-open-slot scan looks.
const nextOpenHorizon = 7 * 24 * time.Hour

// VenueStore reads the admin-managed configuration the engine consumes.
type VenueStore interface {
	Tables(ctx context.Context) ([]model.Table, error)
	HoursRules(ctx context.Context, weekday time.Weekday, date time.Time) ([]model.HoursRule, error)
	ActiveBookingWindow(ctx context.Context) (*model.BookingWindow, error)
	ActiveEventsInRange(ctx context.Context, from, to time.Time) ([]model.PrivateEvent, error)
}

// ReservationStore persists reservations. Create and Reschedule must fail
// with a conflict error (storage.IsConflict) when a concurrent commit claims
// the same table for overlapping time.
type ReservationStore interface {
	ActiveInRange(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ActiveForTableInRange(ctx context.Context, tableID string, from, to time.Time) ([]model.Reservation, error)
	Create(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	Cancel(ctx context.Context, id string) (model.Reservation, error)
	Reschedule(ctx context.Context, id string, tableID *string, start, end time.Time, partySize int) (model.Reservation, error)
	SetCheckedIn(ctx context.Context, id string, at time.Time) error
}

// HoldPlacer is the optional payment pre-authorization side effect.
type HoldPlacer interface {
	Place(ctx context.Context, reservationID, guestEmail string) (string, error)
}

type Service struct {
	venue        VenueStore
	reservations ReservationStore
	resolver     *schedule.Resolver
	holds        HoldPlacer
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(venue VenueStore, reservations ReservationStore, loc *time.Location, holds HoldPlacer, logger *slog.Logger) *Service {
	return &Service{
		venue:        venue,
		reservations: reservations,
		resolver:     &schedule.Resolver{Location: loc},
		holds:        holds,
		logger:       logger,
		now:          time.Now,
	}
}

// Slot is one offerable start time: a 12-hour local label plus UTC instants.
type Slot struct {
	Label string
	Start time.Time
	End   time.Time
}

// AvailableSlots lists the offerable start times for a date and party size.
// No availability — whether from a closure, the booking window, a full-day
// event or simply no configured hours — is a normal outcome and yields an
// empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, dateStr string, partySize int) ([]Slot, error) {
	day, err := s.parseDate(dateStr)
	if err != nil || partySize < 1 {
		return nil, ErrInvalidInput
	}

	slots, err := s.daySlots(ctx, day, partySize)
	if err != nil {
		if errors.Is(err, schedule.ErrOutsideWindow) || errors.Is(err, schedule.ErrClosed) {
			return []Slot{}, nil
		}
		return nil, err
	}

	out := make([]Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.Available {
			out = append(out, s.slotView(sl))
		}
	}
	return out, nil
}

// AlternativeTimes finds the nearest offerable times strictly before and
// strictly after a requested time on the same date. Either may be nil.
func (s *Service) AlternativeTimes(ctx context.Context, dateStr string, partySize int, timeStr string) (before, after *Slot, err error) {
	day, err := s.parseDate(dateStr)
	if err != nil || partySize < 1 {
		return nil, nil, ErrInvalidInput
	}
	requested, err := s.clockOn(day, timeStr)
	if err != nil {
		return nil, nil, ErrInvalidInput
	}

	slots, err := s.daySlots(ctx, day, partySize)
	if err != nil {
		if errors.Is(err, schedule.ErrOutsideWindow) || errors.Is(err, schedule.ErrClosed) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	duration := availability.DurationForParty(partySize)
	b, a := availability.Nearest(slots, availability.Interval{Start: requested, End: requested.Add(duration)})
	if b != nil {
		v := s.slotView(*b)
		before = &v
	}
	if a != nil {
		v := s.slotView(*a)
		after = &v
	}
	return before, after, nil
}

// CreateRequest carries a booking attempt. EventID links a reservation to a
// private event so the event does not block its own attendees.
type CreateRequest struct {
	Date       string
	Time       string
	PartySize  int
	GuestName  string
	GuestEmail string
	GuestPhone string
	EventID    *string
}

// CreateReservation commits a reservation for the requested slot. The table
// is chosen smallest-fit; the insert is protected by the database exclusion
// constraint, so losing a race to a concurrent booking surfaces as a
// conflict and the next candidate table is tried, up to a small bound.
// Exhaustion — not the race itself — is what reaches the caller, as
// ErrNoTableAvailable.
func (s *Service) CreateReservation(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
	req.GuestName = strings.TrimSpace(req.GuestName)
	if req.GuestName == "" || req.PartySize < 1 {
		return nil, ErrInvalidInput
	}
	day, err := s.parseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidInput
	}
	start, err := s.clockOn(day, req.Time)
	if err != nil {
		return nil, ErrInvalidInput
	}

	windows, err := s.resolveDay(ctx, day)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrOutsideWindow):
			return nil, ErrOutsideBookingWindow
		case errors.Is(err, schedule.ErrClosed):
			return nil, ErrVenueClosed
		}
		return nil, err
	}

	duration := availability.DurationForParty(req.PartySize)
	candidate := availability.Interval{Start: start, End: start.Add(duration)}
	if !withinAny(candidate, windows) {
		return nil, ErrVenueClosed
	}

	tables, reservations, events, err := s.dayState(ctx, day)
	if err != nil {
		return nil, err
	}

	excl := allocator.Exclusions{}
	if req.EventID != nil {
		excl.EventID = *req.EventID
	}

	tried := make(map[string]struct{})
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		table := allocator.Assign(candidate, req.PartySize, withoutTables(tables, tried), reservations, events, excl)
		if table == nil {
			return nil, ErrNoTableAvailable
		}

		res := &model.Reservation{
			ID:         uuid.NewString(),
			TableID:    &table.ID,
			StartTime:  candidate.Start,
			EndTime:    candidate.End,
			PartySize:  req.PartySize,
			Status:     model.StatusActive,
			GuestName:  req.GuestName,
			GuestEmail: strings.TrimSpace(req.GuestEmail),
			GuestPhone: strings.TrimSpace(req.GuestPhone),
			EventID:    req.EventID,
		}
		err := s.reservations.Create(ctx, res)
		if err == nil {
			s.placeHold(ctx, res)
			return res, nil
		}
		if storage.IsConflict(err) {
			// Lost the race for this table; try the next candidate.
			s.logger.Info("booking conflict, retrying next table", "table_id", table.ID, "attempt", attempt+1)
			tried[table.ID] = struct{}{}
			continue
		}
		return nil, err
	}
	return nil, ErrNoTableAvailable
}

// NextOpenSlot scans forward from a desired start across all qualifying
// tables for the earliest block of the required duration, within a seven-day
// horizon. Returns nil when nothing opens up.
func (s *Service) NextOpenSlot(ctx context.Context, desired time.Time, partySize int) (*time.Time, error) {
	if partySize < 1 || desired.IsZero() {
		return nil, ErrInvalidInput
	}
	desired = desired.UTC()
	limit := desired.Add(nextOpenHorizon)

	tables, err := s.venue.Tables(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.venue.ActiveEventsInRange(ctx, desired, limit)
	if err != nil {
		return nil, err
	}
	eventBlocks := make([]availability.Interval, 0, len(events))
	for _, ev := range events {
		eventBlocks = append(eventBlocks, availability.Interval{Start: ev.StartTime, End: ev.EndTime})
	}

	busyPerTable := make(map[string][]availability.Interval)
	for _, t := range tables {
		if t.Capacity < partySize {
			continue
		}
		reservations, err := s.reservations.ActiveForTableInRange(ctx, t.ID, desired, limit)
		if err != nil {
			return nil, err
		}
		busy := make([]availability.Interval, 0, len(reservations)+len(eventBlocks))
		for _, res := range reservations {
			busy = append(busy, availability.Interval{Start: res.StartTime, End: res.EndTime})
		}
		busy = append(busy, eventBlocks...)
		availability.SortByStart(busy)
		busyPerTable[t.ID] = busy
	}
	if len(busyPerTable) == 0 {
		return nil, nil
	}

	duration := availability.DurationForParty(partySize)
	return availability.NextOpen(desired, duration, availability.Step, nextOpenHorizon, busyPerTable), nil
}

// CancelReservation cancels by id; cancelling twice is a no-op.
func (s *Service) CancelReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	res, err := s.reservations.Cancel(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Reschedule moves an active reservation to a new date, time and party size,
// re-running table allocation with the reservation excluded from its own
// conflict checks.
func (s *Service) Reschedule(ctx context.Context, id, dateStr, timeStr string, partySize int) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" || partySize < 1 {
		return nil, ErrInvalidInput
	}
	day, err := s.parseDate(dateStr)
	if err != nil {
		return nil, ErrInvalidInput
	}
	start, err := s.clockOn(day, timeStr)
	if err != nil {
		return nil, ErrInvalidInput
	}

	current, err := s.reservations.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if current.Status != model.StatusActive {
		return nil, ErrNotFound
	}

	windows, err := s.resolveDay(ctx, day)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrOutsideWindow):
			return nil, ErrOutsideBookingWindow
		case errors.Is(err, schedule.ErrClosed):
			return nil, ErrVenueClosed
		}
		return nil, err
	}

	duration := availability.DurationForParty(partySize)
	candidate := availability.Interval{Start: start, End: start.Add(duration)}
	if !withinAny(candidate, windows) {
		return nil, ErrVenueClosed
	}

	tables, reservations, events, err := s.dayState(ctx, day)
	if err != nil {
		return nil, err
	}

	excl := allocator.Exclusions{ReservationID: current.ID}
	if current.EventID != nil {
		excl.EventID = *current.EventID
	}

	tried := make(map[string]struct{})
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		table := allocator.Assign(candidate, partySize, withoutTables(tables, tried), reservations, events, excl)
		if table == nil {
			return nil, ErrNoTableAvailable
		}
		updated, err := s.reservations.Reschedule(ctx, id, &table.ID, candidate.Start, candidate.End, partySize)
		if err == nil {
			return &updated, nil
		}
		if storage.IsConflict(err) {
			tried[table.ID] = struct{}{}
			continue
		}
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return nil, ErrNoTableAvailable
}

// CheckIn records guest arrival on an active reservation.
func (s *Service) CheckIn(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	err := s.reservations.SetCheckedIn(ctx, id, s.now().UTC())
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DayReservations lists active reservations for a local date.
func (s *Service) DayReservations(ctx context.Context, dateStr string) ([]model.Reservation, error) {
	day, err := s.parseDate(dateStr)
	if err != nil {
		return nil, ErrInvalidInput
	}
	span := s.resolver.DayRange(day)
	return s.reservations.ActiveInRange(ctx, span.Start, span.End)
}

// daySlots builds the full candidate vector for a date: every slot the
// generator yields, flagged by whether any table can host it.
func (s *Service) daySlots(ctx context.Context, day time.Time, partySize int) ([]availability.Slot, error) {
	windows, err := s.resolveDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	tables, reservations, events, err := s.dayState(ctx, day)
	if err != nil {
		return nil, err
	}

	duration := availability.DurationForParty(partySize)
	starts := availability.SlotStarts(windows, duration, availability.Step)

	slots := make([]availability.Slot, 0, len(starts))
	for _, start := range starts {
		candidate := availability.Interval{Start: start, End: start.Add(duration)}
		slots = append(slots, availability.Slot{
			Start:     start,
			End:       candidate.End,
			Available: allocator.Available(candidate, partySize, tables, reservations, events, allocator.Exclusions{}),
		})
	}
	return slots, nil
}

func (s *Service) resolveDay(ctx context.Context, day time.Time) ([]availability.Interval, error) {
	window, err := s.venue.ActiveBookingWindow(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.venue.HoursRules(ctx, day.Weekday(), day)
	if err != nil {
		return nil, err
	}
	span := s.resolver.DayRange(day)
	events, err := s.venue.ActiveEventsInRange(ctx, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(day, rules, window, events)
}

func (s *Service) dayState(ctx context.Context, day time.Time) ([]model.Table, []model.Reservation, []model.PrivateEvent, error) {
	span := s.resolver.DayRange(day)
	tables, err := s.venue.Tables(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	reservations, err := s.reservations.ActiveInRange(ctx, span.Start, span.End)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := s.venue.ActiveEventsInRange(ctx, span.Start, span.End)
	if err != nil {
		return nil, nil, nil, err
	}
	return tables, reservations, events, nil
}

func (s *Service) placeHold(ctx context.Context, res *model.Reservation) {
	if s.holds == nil {
		return
	}
	if _, err := s.holds.Place(ctx, res.ID, res.GuestEmail); err != nil {
		// The booking stands regardless; the hold is a best-effort side effect.
		s.logger.Warn("reservation hold failed", "reservation_id", res.ID, "err", err)
	}
}

func (s *Service) slotView(sl availability.Slot) Slot {
	return Slot{
		Label: sl.Start.In(s.resolver.Location).Format("3:04pm"),
		Start: sl.Start,
		End:   sl.End,
	}
}

func (s *Service) parseDate(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(dateStr), s.resolver.Location)
}

// clockOn interprets a wall-clock string on a local date and returns the UTC
// instant. Both 24-hour ("18:30") and 12-hour ("6:30pm") forms are accepted.
func (s *Service) clockOn(day time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	var parsed time.Time
	var err error
	for _, layout := range []string{"15:04", "3:04pm", "3:04PM"} {
		parsed, err = time.Parse(layout, clock)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, s.resolver.Location)
	return local.UTC(), nil
}

func withinAny(candidate availability.Interval, windows []availability.Interval) bool {
	for _, w := range windows {
		if w.Contains(candidate) {
			return true
		}
	}
	return false
}

func withoutTables(tables []model.Table, skip map[string]struct{}) []model.Table {
	if len(skip) == 0 {
		return tables
	}
	out := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if _, ok := skip[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}
