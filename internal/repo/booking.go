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

type bookingRepository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewBookingRepository(db *dbpg.DB, log *zerolog.Logger) (BookingRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &bookingRepository{db: db, log: log}, nil
}

const bookingColumns = `id, user_id, room_id, start_time, end_time, purpose, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*model.Booking, error) {
	var b model.Booking
	if err := row.Scan(
		&b.ID, &b.UserID, &b.RoomID, &b.StartTime, &b.EndTime, &b.Purpose, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *model.Booking) (int64, error) {
	query := `
		INSERT INTO bookings (user_id, room_id, start_time, end_time, purpose)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, b.UserID, b.RoomID, b.StartTime, b.EndTime, b.Purpose).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqExclusionViolation {
			return 0, ErrBookingOverlap
		}
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}
	return b.ID, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (r *bookingRepository) List(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY start_time ASC`)
}

func (r *bookingRepository) ListByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY start_time ASC`, userID)
}

func (r *bookingRepository) ListByRoom(ctx context.Context, roomID int64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE room_id = $1 ORDER BY start_time ASC`, roomID)
}

func (r *bookingRepository) list(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) Update(ctx context.Context, b *model.Booking) error {
	query := `
		UPDATE bookings
		SET user_id = $1, room_id = $2, start_time = $3, end_time = $4, purpose = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, b.UserID, b.RoomID, b.StartTime, b.EndTime, b.Purpose, b.ID).
		Scan(&b.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrBookingNotFound
	case pqCode(err) == pqExclusionViolation:
		return ErrBookingOverlap
	case err != nil:
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
