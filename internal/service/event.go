package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"roombooker/internal/apperr"
	"roombooker/internal/clients"
	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/repo"
)

const (
	MsgOrganizerNotFound    = "The specified organizer does not exist."
	MsgEventNotFound        = "Event not found"
	MsgInsufficientCapacity = "Room capacity is smaller than the expected attendees"
	MsgEventNotPending      = "Only PENDING events can be updated"
	MsgInvalidStatus        = "Invalid status value"
	MsgEventAccepted        = "Event accepted, it is registered once its booking is processed"
)

// attendeeLimits caps expected attendees per organizer type.
var attendeeLimits = map[string]int{
	model.TypeStudent: 50,
	model.TypeStaff:   100,
	model.TypeFaculty: 200,
}

// CheckAttendees applies the attendee policy. Unrecognized types are refused for any count.
func CheckAttendees(userType string, attendees int) error {
	typ := strings.ToUpper(strings.TrimSpace(userType))
	limit, ok := attendeeLimits[typ]
	if !ok {
		return apperr.Forbidden(fmt.Sprintf("User type %q may not organize events", userType))
	}
	if attendees > limit {
		return apperr.Forbidden(fmt.Sprintf("%s organizers are limited to %d attendees", typ, limit))
	}
	return nil
}

type EventDeps struct {
	Events   repo.EventRepository
	Users    clients.UserClient
	Rooms    clients.RoomClient
	Bookings clients.BookingClient
	Log      *zerolog.Logger
}

// EventService is the orchestrating workflow of the event service.
type EventService struct {
	events   repo.EventRepository
	users    clients.UserClient
	rooms    clients.RoomClient
	bookings clients.BookingClient
	log      *zerolog.Logger
}

func NewEventService(d EventDeps) *EventService {
	if d.Log == nil {
		nop := zerolog.Nop()
		d.Log = &nop
	}
	return &EventService{
		events:   d.Events,
		users:    d.Users,
		rooms:    d.Rooms,
		bookings: d.Bookings,
		log:      d.Log,
	}
}

// CreateEvent validates the request and issues an event booking. The event itself is
// materialized later by the registrar.
func (s *EventService) CreateEvent(ctx context.Context, req dto.EventRequest) (*dto.EventAccepted, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, nil); err != nil {
		return nil, err
	}

	b, err := s.bookings.CreateEventBooking(ctx, eventBookingRequest(req, nil))
	if err != nil {
		s.log.Warn().Err(err).Int64("room_id", req.RoomID).Msg("booking service refused event booking")
		return nil, err
	}

	s.log.Info().Int64("booking_id", b.ID).Int64("room_id", req.RoomID).Msg("event accepted")
	return &dto.EventAccepted{Message: MsgEventAccepted, BookingID: b.ID}, nil
}

// UpdateEvent revalidates and rebooks an event when its room, interval or attendance changed.
func (s *EventService) UpdateEvent(ctx context.Context, id int64, req dto.EventRequest) (*model.Event, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, eventErr(err)
	}

	if e.RoomID == req.RoomID &&
		e.StartTime.Equal(req.StartTime) &&
		e.EndTime.Equal(req.EndTime) &&
		e.ExpectedAttendees == req.ExpectedAttendees {
		return e, nil
	}
	if e.Status != model.StatusPending {
		return nil, apperr.Conflict(MsgEventNotPending)
	}

	if err := s.validate(ctx, req, e.BookingID); err != nil {
		return nil, err
	}

	b, err := s.rebook(ctx, e, req)
	if err != nil {
		return nil, err
	}

	bookingID := b.ID
	e.EventName = req.EventName
	e.OrganizerID = req.OrganizerID
	e.EventType = req.EventType
	e.ExpectedAttendees = req.ExpectedAttendees
	e.StartTime = req.StartTime
	e.EndTime = req.EndTime
	e.RoomID = req.RoomID
	e.BookingID = &bookingID
	e.Status = model.StatusPending
	if err := s.events.Update(ctx, e); err != nil {
		return nil, eventErr(err)
	}

	s.log.Info().Int64("event_id", id).Int64("booking_id", bookingID).Msg("event updated")
	return e, nil
}

// rebook moves the event's booking in place. A new event booking is issued only when the event
// has no booking left.
func (s *EventService) rebook(ctx context.Context, e *model.Event, req dto.EventRequest) (*model.Booking, error) {
	breq := eventBookingRequest(req, &e.ID)
	if e.BookingID != nil {
		b, err := s.bookings.ReplaceEventBooking(ctx, *e.BookingID, breq)
		if err == nil || !apperr.IsNotFound(err) {
			return b, err
		}
		s.log.Warn().Int64("event_id", e.ID).Int64("booking_id", *e.BookingID).
			Msg("booking of event is gone, issuing a new one")
	}
	return s.bookings.CreateEventBooking(ctx, breq)
}

// validate runs the workflow checks in order and stops at the first failure.
func (s *EventService) validate(ctx context.Context, req dto.EventRequest, currentBooking *int64) error {
	typ, err := s.users.Type(ctx, req.OrganizerID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound(MsgOrganizerNotFound)
		}
		return err
	}

	if err := CheckAttendees(typ, req.ExpectedAttendees); err != nil {
		return err
	}

	exists, err := s.rooms.Exists(ctx, req.RoomID)
	if err != nil && !apperr.IsNotFound(err) {
		return err
	}
	if err != nil || !exists {
		return apperr.NotFound(MsgRoomNotFound)
	}

	capacity, err := s.rooms.Capacity(ctx, req.RoomID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound(MsgRoomNotFound)
		}
		return err
	}
	if capacity < req.ExpectedAttendees {
		return apperr.Validation(MsgInsufficientCapacity)
	}

	available, err := s.bookings.IsAvailable(ctx, clients.AvailabilityQuery{
		RoomID:           req.RoomID,
		Start:            req.StartTime,
		End:              req.EndTime,
		ExcludeBookingID: currentBooking,
	})
	if err != nil {
		return err
	}
	if !available {
		return apperr.Conflict(MsgRoomNotAvailable)
	}
	return nil
}

func eventBookingRequest(req dto.EventRequest, eventID *int64) dto.EventBookingRequest {
	return dto.EventBookingRequest{
		BookingRequest: dto.BookingRequest{
			UserID:    req.OrganizerID,
			RoomID:    req.RoomID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Purpose:   req.EventName,
		},
		EventType:         req.EventType,
		ExpectedAttendees: req.ExpectedAttendees,
		EventID:           eventID,
	}
}

func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list events", err)
	}
	return events, nil
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, eventErr(err)
	}
	return e, nil
}

func (s *EventService) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.events.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrEventNotFound):
		return false, nil
	default:
		return false, apperr.Internal("failed to get event", err)
	}
}

// UpdateStatus moves an event along the status state machine. Writing the current status again
// is a no-op; leaving a terminal status is a conflict.
func (s *EventService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Event, error) {
	next, ok := model.ParseStatus(status)
	if !ok {
		return nil, apperr.Validation(MsgInvalidStatus)
	}
	e, err := s.events.UpdateStatusTx(ctx, id, next)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) && e != nil {
			return nil, apperr.Conflict(fmt.Sprintf("Event %d is %s and cannot become %s", id, e.Status, next))
		}
		return nil, eventErr(err)
	}
	s.log.Info().Int64("event_id", id).Str("status", string(e.Status)).Msg("event status updated")
	return e, nil
}

// DeleteEvent removes the event's booking through the booking service, then the event.
func (s *EventService) DeleteEvent(ctx context.Context, id int64) error {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return eventErr(err)
	}
	if e.BookingID != nil {
		if err := s.bookings.Delete(ctx, *e.BookingID); err != nil && !apperr.IsNotFound(err) {
			s.log.Error().Err(err).Int64("event_id", id).Int64("booking_id", *e.BookingID).
				Msg("failed to delete booking of event")
			return err
		}
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return eventErr(err)
	}
	s.log.Info().Int64("event_id", id).Msg("event deleted")
	return nil
}

func eventErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		return apperr.NotFound(MsgEventNotFound).WithCode(dto.EventNotFound)
	case errors.Is(err, repo.ErrInvalidTransition):
		return apperr.Conflict("invalid status transition")
	default:
		return apperr.Internal("event store failure", err)
	}
}
