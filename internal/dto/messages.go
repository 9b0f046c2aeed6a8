package dto

import "time"

// BookingEvent is published on the "booking" channel once an event booking is committed.
// Everything the registrar needs to build the Event is in the payload.
type BookingEvent struct {
	MessageID         string    `json:"messageId"`
	BookingID         int64     `json:"bookingId"`
	RoomID            int64     `json:"roomId"`
	UserID            int64     `json:"userId"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Purpose           string    `json:"purpose"`
	EventType         string    `json:"eventType"`
	ExpectedAttendees int       `json:"expectedAttendees"`
	// EventID is set when the booking replaces the booking of an existing event.
	EventID *int64 `json:"eventId,omitempty"`
}
