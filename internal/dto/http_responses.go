package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"roombooker/internal/apperr"
	"roombooker/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	BookingNotFound  = "BOOKING_NOT_FOUND"
	EventNotFound    = "EVENT_NOT_FOUND"
	ApprovalNotFound = "APPROVAL_NOT_FOUND"
)

type BookingRequest struct {
	UserID    int64     `json:"userId" validate:"required,positive"`
	RoomID    int64     `json:"roomId" validate:"required,positive"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Purpose   string    `json:"purpose" validate:"max=255"`
}

// EventBookingRequest is the body of POST /api/bookings/event. The event fields ride along so the
// booking service can put them into the BookingEvent payload.
type EventBookingRequest struct {
	BookingRequest
	EventType         string `json:"eventType" validate:"max=64"`
	ExpectedAttendees int    `json:"expectedAttendees" validate:"gte=0"`
	EventID           *int64 `json:"eventId,omitempty"`
}

type EventRequest struct {
	EventName         string    `json:"eventName" validate:"required,max=255"`
	OrganizerID       int64     `json:"organizerId" validate:"required,positive"`
	EventType         string    `json:"eventType" validate:"required,max=64"`
	ExpectedAttendees int       `json:"expectedAttendees" validate:"gte=1"`
	StartTime         time.Time `json:"startTime" validate:"required"`
	EndTime           time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	RoomID            int64     `json:"roomId" validate:"required,positive"`
}

// EventStatusQuery is the query of PUT /api/events/:id/status.
type EventStatusQuery struct {
	Status string `form:"status" validate:"required,eventstatus"`
}

type ApprovalRequest struct {
	EventID    int64  `json:"eventId" validate:"required,positive"`
	ReviewerID int64  `json:"reviewerId" validate:"required,positive"`
	Status     string `json:"status"`
	Comments   string `json:"comments" validate:"max=1024"`
}

type ApprovalResponse struct {
	ID         *int64 `json:"id"`
	EventID    int64  `json:"eventId"`
	ReviewerID int64  `json:"reviewerId"`
	Status     string `json:"status"`
	Comments   string `json:"comments"`
}

func NewApprovalResponse(a *model.Approval) ApprovalResponse {
	id := a.ID
	return ApprovalResponse{
		ID:         &id,
		EventID:    a.EventID,
		ReviewerID: a.ReviewerID,
		Status:     string(a.Status),
		Comments:   a.Comments,
	}
}

type EventAccepted struct {
	Message   string `json:"message"`
	BookingID int64  `json:"bookingId"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(http.StatusBadRequest, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

// ErrorResponse renders err with the status derived from its apperr kind.
// Internal errors never leak their message.
func ErrorResponse(c *ginext.Context, err error) {
	status := apperr.HTTPStatus(err)
	if apperr.KindOf(err) == apperr.KindInternal {
		InternalServerError(c)
		return
	}
	c.JSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: apperr.Code(err),
			Desc: apperr.Message(err),
		},
	})
}

// ErrorWithData renders an error envelope that still carries a payload, as the approval gate does
// for refused requests.
func ErrorWithData(c *ginext.Context, status int, code, desc string, data any) {
	c.JSON(status, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
		Data:   data,
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}

func AcceptedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusAccepted, Response{
		Status: "ok",
		Data:   data,
	})
}
