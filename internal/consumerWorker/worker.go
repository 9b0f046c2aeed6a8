package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"roombooker/internal/broker"
	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/repo"
)

// Reader registers events from the booking events published by the booking service.
type Reader struct {
	sub    broker.Subscriber
	events repo.EventRepository
	log    *zerolog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(sub broker.Subscriber, events repo.EventRepository, log *zerolog.Logger) *Reader {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Reader{
		sub:    sub,
		events: events,
		log:    log,
		done:   make(chan struct{}),
	}
}

// Start consumes in the background until ctx is done or Stop is called.
func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Str("channel", broker.Channel).Msg("event registrar started")

	go func() {
		defer close(r.done)

		if err := r.sub.Consume(cctx, r.Handle); err != nil {
			r.log.Error().Err(err).Msg("event registrar stopped consuming")
			return
		}
		r.log.Info().Msg("event registrar stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// Handle processes one booking event. Malformed payloads are dropped. Store errors are returned
// so the message is redelivered; redelivery of a registered booking is a no-op.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var msg dto.BookingEvent
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Msgf("Failed to unmarshal booking event: %s", string(body))
		return broker.Drop(err)
	}
	if msg.BookingID <= 0 {
		r.log.Error().Str("message_id", msg.MessageID).Msg("booking event without booking id")
		return broker.Drop(fmt.Errorf("booking event %q has no booking id", msg.MessageID))
	}

	log := r.log.With().
		Str("message_id", msg.MessageID).
		Int64("booking_id", msg.BookingID).
		Int64("room_id", msg.RoomID).
		Logger()
	log.Info().Msg("booking event received")

	existing, err := r.events.GetByBookingID(ctx, msg.BookingID)
	switch {
	case err == nil:
		log.Info().Int64("event_id", existing.ID).Msg("booking already registered, skipping")
		return nil
	case !errors.Is(err, repo.ErrEventNotFound):
		log.Error().Err(err).Msg("Failed to look up event by booking")
		return err
	}

	if msg.EventID != nil {
		return r.attach(ctx, &log, *msg.EventID, msg.BookingID)
	}

	bookingID := msg.BookingID
	e := &model.Event{
		EventName:         eventName(msg),
		OrganizerID:       msg.UserID,
		EventType:         msg.EventType,
		ExpectedAttendees: msg.ExpectedAttendees,
		StartTime:         msg.StartTime,
		EndTime:           msg.EndTime,
		RoomID:            msg.RoomID,
		BookingID:         &bookingID,
		Status:            model.StatusPending,
	}
	created, err := r.events.CreateFromBooking(ctx, e)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register event")
		return err
	}
	if !created {
		log.Info().Msg("booking registered concurrently, skipping")
		return nil
	}

	log.Info().Int64("event_id", e.ID).Str("status", string(e.Status)).Msg("event registered")
	return nil
}

func (r *Reader) attach(ctx context.Context, log *zerolog.Logger, eventID, bookingID int64) error {
	if err := r.events.AttachBooking(ctx, eventID, bookingID); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			log.Warn().Int64("event_id", eventID).Msg("rebooked event no longer exists")
			return broker.Drop(err)
		}
		log.Error().Err(err).Int64("event_id", eventID).Msg("Failed to attach booking to event")
		return err
	}
	log.Info().Int64("event_id", eventID).Msg("booking attached to event")
	return nil
}

func eventName(msg dto.BookingEvent) string {
	if name := strings.TrimSpace(msg.Purpose); name != "" {
		return name
	}
	return msg.EventType
}
