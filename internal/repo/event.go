package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"roombooker/internal/model"
)

type eventRepository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewEventRepository(db *dbpg.DB, log *zerolog.Logger) (EventRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &eventRepository{db: db, log: log}, nil
}

const eventColumns = `id, event_name, organizer_id, event_type, expected_attendees, start_time, end_time,
	room_id, booking_id, status, created_at, updated_at`

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e         model.Event
		bookingID sql.NullInt64
	)
	if err := row.Scan(
		&e.ID, &e.EventName, &e.OrganizerID, &e.EventType, &e.ExpectedAttendees, &e.StartTime, &e.EndTime,
		&e.RoomID, &bookingID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := bookingID.Int64
		e.BookingID = &id
	}
	return &e, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (r *eventRepository) Create(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (event_name, organizer_id, event_type, expected_attendees, start_time, end_time,
		                    room_id, booking_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.EventName, e.OrganizerID, e.EventType, e.ExpectedAttendees, e.StartTime, e.EndTime,
		e.RoomID, nullableID(e.BookingID), e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return e.ID, nil
}

func (r *eventRepository) CreateFromBooking(ctx context.Context, e *model.Event) (bool, error) {
	if e.BookingID == nil {
		return false, fmt.Errorf("event has no booking id")
	}
	query := `
		INSERT INTO events (event_name, organizer_id, event_type, expected_attendees, start_time, end_time,
		                    room_id, booking_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.EventName, e.OrganizerID, e.EventType, e.ExpectedAttendees, e.StartTime, e.EndTime,
		e.RoomID, *e.BookingID, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to register event: %w", err)
	}
	return true, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

func (r *eventRepository) GetByBookingID(ctx context.Context, bookingID int64) (*model.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE booking_id = $1`, bookingID)
}

func (r *eventRepository) get(ctx context.Context, query string, arg int64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *eventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET event_name = $1, organizer_id = $2, event_type = $3, expected_attendees = $4,
		    start_time = $5, end_time = $6, room_id = $7, booking_id = $8, status = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.EventName, e.OrganizerID, e.EventType, e.ExpectedAttendees, e.StartTime, e.EndTime,
		e.RoomID, nullableID(e.BookingID), e.Status, e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (r *eventRepository) AttachBooking(ctx context.Context, eventID, bookingID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET booking_id = $1, updated_at = NOW() WHERE id = $2`, bookingID, eventID)
	if err != nil {
		return fmt.Errorf("failed to attach booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to attach booking: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *eventRepository) UpdateStatusTx(ctx context.Context, id int64, next model.EventStatus) (*model.Event, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	e, err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to select event for status update: %w", err)
	}

	if !e.Status.CanTransition(next) {
		_ = tx.Rollback()
		return e, ErrInvalidTransition
	}
	if e.Status == next {
		_ = tx.Rollback()
		return e, nil
	}

	if err := tx.QueryRowContext(ctx,
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`, next, id,
	).Scan(&e.UpdatedAt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update event status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.Status = next
	return e, nil
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
