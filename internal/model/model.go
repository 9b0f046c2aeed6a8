package model

import (
	"strings"
	"time"
)

type EventStatus string

const (
	StatusPending  EventStatus = "PENDING"
	StatusApproved EventStatus = "APPROVED"
	StatusRejected EventStatus = "REJECTED"
)

// ParseStatus normalises a status string. ok is false for anything outside the state machine.
func ParseStatus(s string) (EventStatus, bool) {
	switch st := EventStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	default:
		return "", false
	}
}

func (s EventStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether an event in status s may move to next.
// Writing the current status again is allowed and treated as a no-op.
func (s EventStatus) CanTransition(next EventStatus) bool {
	if s == next {
		return true
	}
	return s == StatusPending && next.Terminal()
}

const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPERADMIN"

	TypeStudent = "STUDENT"
	TypeStaff   = "STAFF"
	TypeFaculty = "FACULTY"

	// Unknown is returned by the resilient user client when the user service could not answer.
	Unknown = "UNKNOWN"
)

type Booking struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	RoomID    int64     `db:"room_id" json:"roomId"`
	StartTime time.Time `db:"start_time" json:"startTime"`
	EndTime   time.Time `db:"end_time" json:"endTime"`
	Purpose   string    `db:"purpose" json:"purpose"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Overlaps reports whether b intersects [start, end). Touching endpoints do not overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.EndTime.After(start) && b.StartTime.Before(end)
}

type Event struct {
	ID                int64       `db:"id" json:"id"`
	EventName         string      `db:"event_name" json:"eventName"`
	OrganizerID       int64       `db:"organizer_id" json:"organizerId"`
	EventType         string      `db:"event_type" json:"eventType"`
	ExpectedAttendees int         `db:"expected_attendees" json:"expectedAttendees"`
	StartTime         time.Time   `db:"start_time" json:"startTime"`
	EndTime           time.Time   `db:"end_time" json:"endTime"`
	RoomID            int64       `db:"room_id" json:"roomId"`
	BookingID         *int64      `db:"booking_id" json:"bookingId"`
	Status            EventStatus `db:"status" json:"status"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updatedAt"`
}

type Approval struct {
	ID         int64       `db:"id" json:"id"`
	EventID    int64       `db:"event_id" json:"eventId"`
	ReviewerID int64       `db:"reviewer_id" json:"reviewerId"`
	Status     EventStatus `db:"status" json:"status"`
	Comments   string      `db:"comments" json:"comments"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updatedAt"`
}
