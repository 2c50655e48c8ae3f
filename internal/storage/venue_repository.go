package storage

import (
	"context"
	"time"

	"github.com/mvannier/tablebook/internal/model"
	"github.com/mvannier/tablebook/libs/db"
)

// VenueRepository reads the admin-managed reference data the engine consumes:
// tables, venue-hours rules, the booking window and private events. The
// engine never writes any of it.
type VenueRepository struct {
	pool *db.Pool
}

func NewVenueRepository(pool *db.Pool) *VenueRepository {
	return &VenueRepository{pool: pool}
}

func (r *VenueRepository) Tables(ctx context.Context) ([]model.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, table_number, capacity
		FROM tables
		ORDER BY capacity ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// HoursRules returns the base ranges for the date's weekday plus any
// exceptional rules pinned to the exact date. One row per local-time range.
func (r *VenueRepository) HoursRules(ctx context.Context, weekday time.Weekday, date time.Time) ([]model.HoursRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, kind, COALESCE(weekday, -1), COALESCE(on_date, '0001-01-01'::date), full_day,
			COALESCE(start_minute, 0), COALESCE(end_minute, 0)
		FROM venue_hours
		WHERE (kind = 'base' AND weekday = $1)
			OR (kind IN ('exceptional_open', 'exceptional_closure') AND on_date = $2)
		ORDER BY start_minute ASC
	`, int(weekday), date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HoursRule
	for rows.Next() {
		var rule model.HoursRule
		var wd int
		if err := rows.Scan(&rule.ID, &rule.Kind, &wd, &rule.Date, &rule.FullDay, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		if wd >= 0 {
			rule.Weekday = time.Weekday(wd)
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ActiveBookingWindow returns the single active window, or nil when none is
// configured (bookings are then unbounded by date).
func (r *VenueRepository) ActiveBookingWindow(ctx context.Context) (*model.BookingWindow, error) {
	var w model.BookingWindow
	err := r.pool.QueryRow(ctx, `
		SELECT start_date, end_date
		FROM booking_windows
		WHERE is_active
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&w.StartDate, &w.EndDate)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// ActiveEventsInRange returns active private events overlapping [from, to).
func (r *VenueRepository) ActiveEventsInRange(ctx context.Context, from, to time.Time) ([]model.PrivateEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, starts_at, ends_at, full_day, status
		FROM private_events
		WHERE status = 'active'
			AND starts_at < $2
			AND ends_at > $1
		ORDER BY starts_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PrivateEvent
	for rows.Next() {
		var ev model.PrivateEvent
		if err := rows.Scan(&ev.ID, &ev.StartTime, &ev.EndTime, &ev.FullDay, &ev.Status); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
