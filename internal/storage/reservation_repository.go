package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mvannier/tablebook/internal/model"
	"github.com/mvannier/tablebook/internal/outbox"
	"github.com/mvannier/tablebook/libs/db"
)

// ReservationRepository persists reservations and writes their outbox events
// in the same transaction. The reservations table carries an exclusion
// constraint on (table_id, time range) for active rows, so the insert itself
// fails when two commits race for the same table and overlapping time; the
// service layer retries against the next candidate table on IsConflict.
type ReservationRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewReservationRepository(pool *db.Pool, outboxRepo *outbox.Repository) *ReservationRepository {
	return &ReservationRepository{pool: pool, outboxRepo: outboxRepo}
}

const reservationColumns = `id::text, table_id::text, starts_at, ends_at, party_size, status,
	guest_name, COALESCE(guest_email, ''), COALESCE(guest_phone, ''), event_id::text, checked_in_at, created_at`

// ActiveInRange returns active reservations overlapping [from, to), ordered
// by start time. Rows without a table (private-event attendees) are included;
// the allocator ignores them for table conflicts.
func (r *ReservationRepository) ActiveInRange(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'active'
			AND starts_at < $2
			AND ends_at > $1
		ORDER BY starts_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ActiveForTableInRange returns a single table's active reservations
// overlapping [from, to), sorted by start for the horizon scan.
func (r *ReservationRepository) ActiveForTableInRange(ctx context.Context, tableID string, from, to time.Time) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'active'
			AND table_id = $1
			AND starts_at < $3
			AND ends_at > $2
		ORDER BY starts_at ASC
	`, tableID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

// Create inserts the reservation and its created event atomically. A 23P01
// error from the exclusion constraint means the table was taken by a
// concurrent commit.
func (r *ReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (id, table_id, starts_at, ends_at, party_size, status, guest_name, guest_email, guest_phone, event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		RETURNING created_at
	`, res.ID, res.TableID, res.StartTime, res.EndTime, res.PartySize, res.Status,
		res.GuestName, res.GuestEmail, res.GuestPhone, res.EventID).Scan(&res.CreatedAt)
	if err != nil {
		return err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventReservationCreated, res, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Cancel marks a reservation cancelled and emits the cancellation event.
// Cancelling an already-cancelled reservation is a no-op returning the
// original cancellation state.
func (r *ReservationRepository) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return model.Reservation{}, err
	}
	if res.Status == model.StatusCancelled {
		return res, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = 'cancelled' WHERE id = $1
	`, id); err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.StatusCancelled

	if err := r.insertEvent(ctx, tx, outbox.EventReservationCancelled, &res, nil); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// Reschedule moves a reservation to a new interval, table and party size.
// The exclusion constraint re-validates the update the same way it guards
// inserts, so a racing edit surfaces as IsConflict.
func (r *ReservationRepository) Reschedule(ctx context.Context, id string, tableID *string, start, end time.Time, partySize int) (model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := scanReservation(tx.QueryRow(ctx, `
		UPDATE reservations
		SET table_id = $2, starts_at = $3, ends_at = $4, party_size = $5
		WHERE id = $1 AND status = 'active'
		RETURNING `+reservationColumns+`
	`, id, tableID, start, end, partySize))
	if err != nil {
		return model.Reservation{}, err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventReservationModified, &res, nil); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// SetCheckedIn records guest arrival on an active reservation.
func (r *ReservationRepository) SetCheckedIn(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET checked_in_at = $2
		WHERE id = $1 AND status = 'active'
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ReservationRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, res *model.Reservation, extra map[string]any) error {
	payload := map[string]any{
		"reservation_id": res.ID,
		"party_size":     res.PartySize,
		"guest_name":     res.GuestName,
		"guest_email":    res.GuestEmail,
		"guest_phone":    res.GuestPhone,
		"start_time":     res.StartTime.UTC().Format(time.RFC3339),
		"end_time":       res.EndTime.UTC().Format(time.RFC3339),
		"status":         res.Status,
	}
	if res.TableID != nil {
		payload["table_id"] = *res.TableID
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     eventType,
		Payload:       raw,
	})
}

func scanReservations(rows pgx.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID,
		&res.TableID,
		&res.StartTime,
		&res.EndTime,
		&res.PartySize,
		&res.Status,
		&res.GuestName,
		&res.GuestEmail,
		&res.GuestPhone,
		&res.EventID,
		&res.CheckedInAt,
		&res.CreatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}
