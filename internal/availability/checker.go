// Package availability decides whether a room is free for a time interval.
package availability

import (
	"context"
	"fmt"
	"time"

	"roombooker/internal/model"
)

// BookingLister is the slice of the booking repository the checker reads from.
type BookingLister interface {
	ListByRoom(ctx context.Context, roomID int64) ([]model.Booking, error)
}

type Checker struct {
	bookings BookingLister
}

func NewChecker(bookings BookingLister) *Checker {
	return &Checker{bookings: bookings}
}

// IsAvailable reports whether no booking of roomID intersects [start, end).
// Bookings whose id is listed in exclude are ignored.
func (c *Checker) IsAvailable(ctx context.Context, roomID int64, start, end time.Time, exclude ...int64) (bool, error) {
	conflicts, err := c.Conflicts(ctx, roomID, start, end, exclude...)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns the bookings of roomID that overlap [start, end).
func (c *Checker) Conflicts(ctx context.Context, roomID int64, start, end time.Time, exclude ...int64) ([]model.Booking, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	bookings, err := c.bookings.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings of room %d: %w", roomID, err)
	}

	var conflicts []model.Booking
	for _, b := range bookings {
		if excluded(b.ID, exclude) {
			continue
		}
		if b.Overlaps(start, end) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func excluded(id int64, ids []int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
