package api

import (
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"roombooker/internal/dto"
	"roombooker/internal/service"
)

type BookingHandler struct {
	svc *service.BookingService
	log *zerolog.Logger
}

func NewBookingHandler(svc *service.BookingService, log *zerolog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: nopIfNil(log)}
}

func (h *BookingHandler) Create(c *ginext.Context) {
	var req dto.BookingRequest
	if !bind(c, h.log, &req) {
		return
	}

	b, err := h.svc.CreateBooking(c.Request.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Int64("room_id", req.RoomID).Msg("booking refused")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, b)
}

func (h *BookingHandler) CreateForEvent(c *ginext.Context) {
	var req dto.EventBookingRequest
	if !bind(c, h.log, &req) {
		return
	}

	b, err := h.svc.CreateEventBooking(c.Request.Context(), req)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, b)
}

// ReplaceForEvent answers PUT /api/bookings/:id/event, used when an event moves.
func (h *BookingHandler) ReplaceForEvent(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.EventBookingRequest
	if !bind(c, h.log, &req) {
		return
	}

	b, err := h.svc.ReplaceEventBooking(c.Request.Context(), id, req)
	if err != nil {
		h.log.Warn().Err(err).Int64("booking_id", id).Msg("event booking replacement refused")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, b)
}

func (h *BookingHandler) List(c *ginext.Context) {
	bookings, err := h.svc.ListBookings(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list bookings")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, bookings)
}

func (h *BookingHandler) ListByUser(c *ginext.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	bookings, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list bookings of user")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, bookings)
}

func (h *BookingHandler) Get(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(c.Request.Context(), id)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, b)
}

func (h *BookingHandler) Update(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.BookingRequest
	if !bind(c, h.log, &req) {
		return
	}

	b, err := h.svc.UpdateBooking(c.Request.Context(), id, req)
	if err != nil {
		h.log.Warn().Err(err).Int64("booking_id", id).Msg("booking update refused")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, b)
}

func (h *BookingHandler) Delete(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteBooking(c.Request.Context(), id); err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, map[string]int64{"deletedId": id})
}

// Availability answers GET /api/bookings/availability?roomId&startTime&endTime[&excludeBookingId].
func (h *BookingHandler) Availability(c *ginext.Context) {
	roomID, ok := queryID(c, "roomId", true)
	if !ok {
		return
	}
	start, ok := queryTime(c, "startTime")
	if !ok {
		return
	}
	end, ok := queryTime(c, "endTime")
	if !ok {
		return
	}
	exclude, ok := queryID(c, "excludeBookingId", false)
	if !ok {
		return
	}

	available, err := h.svc.IsAvailable(c.Request.Context(), *roomID, start, end, exclude)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, available)
}
