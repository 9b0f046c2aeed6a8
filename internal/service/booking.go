package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"roombooker/internal/apperr"
	"roombooker/internal/availability"
	"roombooker/internal/broker"
	"roombooker/internal/clients"
	"roombooker/internal/dto"
	"roombooker/internal/mailer"
	"roombooker/internal/model"
	"roombooker/internal/repo"
	"roombooker/internal/roomlock"
)

const (
	MsgRoomNotFound        = "Room not found"
	MsgRoomMaintenance     = "Room is under maintenance"
	MsgRoomNotAvailable    = "Room is not available for the requested time"
	MsgBookingNotFound     = "Booking not found"
	MsgUserNotFound        = "User not found"
	MsgInvalidInterval     = "startTime must be before endTime"
	publishTimeout         = 5 * time.Second
	userServiceUnavailable = "User service is unavailable, the user could not be verified"
)

type BookingDeps struct {
	Bookings  repo.BookingRepository
	Rooms     clients.RoomClient
	Users     clients.UserClient
	Locker    roomlock.Locker
	Publisher broker.Publisher
	Alerter   mailer.Alerter
	Log       *zerolog.Logger
}

type BookingService struct {
	bookings repo.BookingRepository
	checker  *availability.Checker
	rooms    clients.RoomClient
	users    clients.UserClient
	locker   roomlock.Locker
	pub      broker.Publisher
	alerts   mailer.Alerter
	log      *zerolog.Logger
}

func NewBookingService(d BookingDeps) *BookingService {
	if d.Locker == nil {
		d.Locker = roomlock.NewLocal()
	}
	if d.Alerter == nil {
		d.Alerter = mailer.Nop{}
	}
	if d.Log == nil {
		nop := zerolog.Nop()
		d.Log = &nop
	}
	return &BookingService{
		bookings: d.Bookings,
		checker:  availability.NewChecker(d.Bookings),
		rooms:    d.Rooms,
		users:    d.Users,
		locker:   d.Locker,
		pub:      d.Publisher,
		alerts:   d.Alerter,
		log:      d.Log,
	}
}

// CreateBooking books a room synchronously. No message is published.
func (s *BookingService) CreateBooking(ctx context.Context, req dto.BookingRequest) (*model.Booking, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	release, err := s.lockRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := s.checker.IsAvailable(ctx, req.RoomID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperr.Internal("failed to check availability", err)
	}
	if !ok {
		return nil, apperr.Conflict(MsgRoomNotAvailable)
	}

	b := newBooking(req)
	if err := s.insert(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info().Int64("booking_id", b.ID).Int64("room_id", b.RoomID).Msg("booking created")
	return b, nil
}

// CreateEventBooking commits the booking of an event and publishes a BookingEvent for the
// registrar. Overlap was validated by the caller; the store constraint still rejects it.
func (s *BookingService) CreateEventBooking(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	release, err := s.lockRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	b := newBooking(req.BookingRequest)
	err = s.insert(ctx, b)
	release()
	if err != nil {
		return nil, err
	}

	msg := dto.BookingEvent{
		MessageID:         uuid.NewString(),
		BookingID:         b.ID,
		RoomID:            b.RoomID,
		UserID:            b.UserID,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		Purpose:           b.Purpose,
		EventType:         req.EventType,
		ExpectedAttendees: req.ExpectedAttendees,
		EventID:           req.EventID,
	}
	if err := s.publish(ctx, msg); err != nil {
		return nil, s.inconsistent(ctx, msg, err)
	}

	s.log.Info().
		Int64("booking_id", b.ID).
		Int64("room_id", b.RoomID).
		Str("message_id", msg.MessageID).
		Msg("event booking created and published")
	return b, nil
}

func (s *BookingService) publish(ctx context.Context, msg dto.BookingEvent) error {
	if s.pub == nil {
		return errors.New("no publisher configured")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode booking event: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.pub.Publish(pctx, strconv.FormatInt(msg.BookingID, 10), body)
}

// inconsistent reports a committed booking whose event will never be registered.
func (s *BookingService) inconsistent(ctx context.Context, msg dto.BookingEvent, cause error) error {
	s.log.WithLevel(zerolog.FatalLevel).
		Err(cause).
		Int64("booking_id", msg.BookingID).
		Int64("room_id", msg.RoomID).
		Str("message_id", msg.MessageID).
		Msg("booking committed but booking event not published, manual reconciliation required")

	subject := fmt.Sprintf("booking %d has no event", msg.BookingID)
	body := fmt.Sprintf(
		"Booking %d (room %d, %s - %s, user %d) was saved but its booking event %s could not be published: %v\n",
		msg.BookingID, msg.RoomID, msg.StartTime.Format(time.RFC3339), msg.EndTime.Format(time.RFC3339),
		msg.UserID, msg.MessageID, cause,
	)
	if err := s.alerts.Alert(context.WithoutCancel(ctx), subject, body); err != nil {
		s.log.Error().Err(err).Int64("booking_id", msg.BookingID).Msg("failed to alert operators")
	}

	return apperr.Inconsistent(
		fmt.Sprintf("Booking %d was saved but its event could not be registered", msg.BookingID), cause,
	)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, bookingErr(err)
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context) ([]model.Booking, error) {
	bookings, err := s.bookings.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) ListByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list bookings", err)
	}
	return bookings, nil
}

// UpdateBooking rewrites a booking. Room and availability are checked again only when the room
// or the interval changed, ignoring the booking itself.
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, req dto.BookingRequest) (*model.Booking, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, bookingErr(err)
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	updated, err := s.rewrite(ctx, current, req)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("booking_id", id).Int64("room_id", req.RoomID).Msg("booking updated")
	return updated, nil
}

// ReplaceEventBooking moves the booking of an event to a new room or interval keeping its id.
// The event service updates the event itself, so no booking event is published.
func (s *BookingService) ReplaceEventBooking(ctx context.Context, id int64, req dto.EventBookingRequest) (*model.Booking, error) {
	if err := validInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, bookingErr(err)
	}

	updated, err := s.rewrite(ctx, current, req.BookingRequest)
	if err != nil {
		return nil, err
	}
	ev := s.log.Info().Int64("booking_id", id).Int64("room_id", req.RoomID)
	if req.EventID != nil {
		ev = ev.Int64("event_id", *req.EventID)
	}
	ev.Msg("event booking replaced")
	return updated, nil
}

func (s *BookingService) rewrite(ctx context.Context, current *model.Booking, req dto.BookingRequest) (*model.Booking, error) {
	updated := newBooking(req)
	updated.ID = current.ID

	moved := current.RoomID != req.RoomID ||
		!current.StartTime.Equal(req.StartTime) ||
		!current.EndTime.Equal(req.EndTime)
	if !moved {
		if err := s.bookings.Update(ctx, updated); err != nil {
			return nil, bookingErr(err)
		}
		return updated, nil
	}

	if err := s.checkRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}
	release, err := s.lockRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := s.checker.IsAvailable(ctx, req.RoomID, req.StartTime, req.EndTime, current.ID)
	if err != nil {
		return nil, apperr.Internal("failed to check availability", err)
	}
	if !ok {
		return nil, apperr.Conflict(MsgRoomNotAvailable)
	}
	if err := s.bookings.Update(ctx, updated); err != nil {
		return nil, bookingErr(err)
	}
	return updated, nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	if err := s.bookings.Delete(ctx, id); err != nil {
		return bookingErr(err)
	}
	s.log.Info().Int64("booking_id", id).Msg("booking deleted")
	return nil
}

// IsAvailable answers the availability endpoint. excludeID, when set, is ignored as a conflict.
func (s *BookingService) IsAvailable(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error) {
	if err := validInterval(start, end); err != nil {
		return false, err
	}
	var exclude []int64
	if excludeID != nil {
		exclude = append(exclude, *excludeID)
	}
	ok, err := s.checker.IsAvailable(ctx, roomID, start, end, exclude...)
	if err != nil {
		return false, apperr.Internal("failed to check availability", err)
	}
	return ok, nil
}

func (s *BookingService) checkRoom(ctx context.Context, roomID int64) error {
	exists, err := s.rooms.Exists(ctx, roomID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound(MsgRoomNotFound)
		}
		return err
	}
	if !exists {
		return apperr.NotFound(MsgRoomNotFound)
	}

	available, err := s.rooms.Available(ctx, roomID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound(MsgRoomNotFound)
		}
		return err
	}
	if !available {
		return apperr.Conflict(MsgRoomMaintenance)
	}
	return nil
}

// checkUser makes sure the booking user exists. Without a user client the check is skipped.
func (s *BookingService) checkUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	typ, err := s.users.Type(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound(MsgUserNotFound)
		}
		return err
	}
	if typ == model.Unknown {
		return apperr.Upstream(userServiceUnavailable, nil)
	}
	return nil
}

func (s *BookingService) lockRoom(ctx context.Context, roomID int64) (func(), error) {
	release, err := s.locker.Acquire(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal("failed to lock room", err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to release room lock")
		}
	}, nil
}

func (s *BookingService) insert(ctx context.Context, b *model.Booking) error {
	if _, err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, repo.ErrBookingOverlap) {
			return apperr.Conflict(MsgRoomNotAvailable)
		}
		return apperr.Internal("failed to create booking", err)
	}
	return nil
}

func newBooking(req dto.BookingRequest) *model.Booking {
	return &model.Booking{
		UserID:    req.UserID,
		RoomID:    req.RoomID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Purpose:   req.Purpose,
	}
}

func validInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return apperr.Validation(MsgInvalidInterval)
	}
	return nil
}

func bookingErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrBookingNotFound):
		return apperr.NotFound(MsgBookingNotFound).WithCode(dto.BookingNotFound)
	case errors.Is(err, repo.ErrBookingOverlap):
		return apperr.Conflict(MsgRoomNotAvailable)
	default:
		return apperr.Internal("booking store failure", err)
	}
}
