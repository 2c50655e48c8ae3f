package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mvannier/tablebook/internal/booking"
	"github.com/mvannier/tablebook/internal/model"
)

type stubVenue struct {
	tables []model.Table
	rules  []model.HoursRule
	window *model.BookingWindow
}

func (s *stubVenue) Tables(context.Context) ([]model.Table, error) { return s.tables, nil }

func (s *stubVenue) HoursRules(_ context.Context, weekday time.Weekday, _ time.Time) ([]model.HoursRule, error) {
	var out []model.HoursRule
	for _, r := range s.rules {
		if r.Kind == model.RuleBase && r.Weekday == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubVenue) ActiveBookingWindow(context.Context) (*model.BookingWindow, error) {
	return s.window, nil
}

func (s *stubVenue) ActiveEventsInRange(context.Context, time.Time, time.Time) ([]model.PrivateEvent, error) {
	return nil, nil
}

type stubReservations struct {
	created []model.Reservation
}

func (s *stubReservations) ActiveInRange(context.Context, time.Time, time.Time) ([]model.Reservation, error) {
	return s.created, nil
}

func (s *stubReservations) ActiveForTableInRange(context.Context, string, time.Time, time.Time) ([]model.Reservation, error) {
	return nil, nil
}

func (s *stubReservations) Create(_ context.Context, res *model.Reservation) error {
	res.CreatedAt = time.Now().UTC()
	s.created = append(s.created, *res)
	return nil
}

func (s *stubReservations) Get(context.Context, string) (model.Reservation, error) {
	return model.Reservation{}, pgx.ErrNoRows
}

func (s *stubReservations) Cancel(context.Context, string) (model.Reservation, error) {
	return model.Reservation{}, pgx.ErrNoRows
}

func (s *stubReservations) Reschedule(context.Context, string, *string, time.Time, time.Time, int) (model.Reservation, error) {
	return model.Reservation{}, pgx.ErrNoRows
}

func (s *stubReservations) SetCheckedIn(context.Context, string, time.Time) error {
	return pgx.ErrNoRows
}

func newTestHandler(venue *stubVenue, reservations *stubReservations) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	svc := booking.NewService(venue, reservations, time.UTC, nil, logger)
	mux := http.NewServeMux()
	NewReservationHandler(svc, logger).Register(mux)
	return mux
}

func tuesdayLunch() *stubVenue {
	// 2026-09-01 is a Tuesday.
	return &stubVenue{
		tables: []model.Table{{ID: "t1", Number: 1, Capacity: 4}},
		rules: []model.HoursRule{
			{ID: "r1", Kind: model.RuleBase, Weekday: time.Tuesday, StartMinute: 12 * 60, EndMinute: 15 * 60},
		},
	}
}

func TestSlotsEndpoint(t *testing.T) {
	h := newTestHandler(tuesdayLunch(), &stubReservations{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-09-01&party_size=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 12:00-15:00 with a 90-minute seating: starts 12:00pm through 1:30pm.
	if len(items) != 7 {
		t.Fatalf("got %d slots, want 7", len(items))
	}
	if items[0].Label != "12:00pm" || items[len(items)-1].Label != "1:30pm" {
		t.Fatalf("labels %q..%q, want 12:00pm..1:30pm", items[0].Label, items[len(items)-1].Label)
	}
}

func TestSlotsEndpointValidation(t *testing.T) {
	h := newTestHandler(tuesdayLunch(), &stubReservations{})

	for _, target := range []string{
		"/api/v1/public/slots?party_size=2",
		"/api/v1/public/slots?date=2026-09-01&party_size=0",
		"/api/v1/public/slots?date=2026-09-01&party_size=abc",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestCreateEndpoint(t *testing.T) {
	reservations := &stubReservations{}
	h := newTestHandler(tuesdayLunch(), reservations)

	body := `{"date":"2026-09-01","time":"12:30","party_size":2,"guest_name":"Ada Li"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/reservations", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var resp reservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TableID == nil || *resp.TableID != "t1" {
		t.Fatalf("table_id = %v, want t1", resp.TableID)
	}
	if resp.StartTime != "2026-09-01T12:30:00Z" {
		t.Fatalf("start_time = %q", resp.StartTime)
	}
	if len(reservations.created) != 1 {
		t.Fatalf("stored %d reservations, want 1", len(reservations.created))
	}
}

func TestCreateEndpointErrorMapping(t *testing.T) {
	venue := tuesdayLunch()
	venue.window = &model.BookingWindow{
		StartDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
	}
	h := newTestHandler(venue, &stubReservations{})

	body := `{"date":"2026-09-01","time":"12:30","party_size":2,"guest_name":"Ada Li"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/reservations", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "outside_booking_window" {
		t.Fatalf("error = %q, want outside_booking_window", resp["error"])
	}
}

func TestCancelEndpointNotFound(t *testing.T) {
	h := newTestHandler(tuesdayLunch(), &stubReservations{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservations/cancel", strings.NewReader(`{"reservation_id":"missing"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(tuesdayLunch(), &stubReservations{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/slots?date=2026-09-01&party_size=2", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
