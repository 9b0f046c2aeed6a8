package clients

import (
	"context"
	"time"

	"roombooker/internal/dto"
	"roombooker/internal/model"
)

// UserClient reads the attributes of a user that the services authorize on.
type UserClient interface {
	Role(ctx context.Context, userID int64) (string, error)
	Type(ctx context.Context, userID int64) (string, error)
}

// RoomClient reads room metadata. Available is the room's own flag and is false while the
// room is under maintenance. It does not look at bookings.
type RoomClient interface {
	Exists(ctx context.Context, roomID int64) (bool, error)
	Capacity(ctx context.Context, roomID int64) (int, error)
	Available(ctx context.Context, roomID int64) (bool, error)
}

type AvailabilityQuery struct {
	RoomID           int64
	Start            time.Time
	End              time.Time
	ExcludeBookingID *int64
}

type BookingClient interface {
	IsAvailable(ctx context.Context, q AvailabilityQuery) (bool, error)
	CreateEventBooking(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error)
	// ReplaceEventBooking moves an existing booking in place, so it never conflicts with itself.
	ReplaceEventBooking(ctx context.Context, bookingID int64, req dto.EventBookingRequest) (*model.Booking, error)
	Delete(ctx context.Context, bookingID int64) error
}

type EventClient interface {
	Exists(ctx context.Context, eventID int64) (bool, error)
	UpdateStatus(ctx context.Context, eventID int64, status model.EventStatus) error
	Delete(ctx context.Context, eventID int64) error
}
