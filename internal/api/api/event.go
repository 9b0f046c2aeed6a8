package api

import (
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"roombooker/internal/dto"
	"roombooker/internal/service"
)

type EventHandler struct {
	svc *service.EventService
	log *zerolog.Logger
}

func NewEventHandler(svc *service.EventService, log *zerolog.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: nopIfNil(log)}
}

func (h *EventHandler) Create(c *ginext.Context) {
	var req dto.EventRequest
	if !bind(c, h.log, &req) {
		return
	}

	accepted, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Int64("organizer_id", req.OrganizerID).Msg("event refused")
		dto.ErrorResponse(c, err)
		return
	}
	dto.AcceptedResponse(c, accepted)
}

func (h *EventHandler) List(c *ginext.Context) {
	events, err := h.svc.ListEvents(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list events")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, events)
}

func (h *EventHandler) Get(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, e)
}

func (h *EventHandler) Update(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.EventRequest
	if !bind(c, h.log, &req) {
		return
	}

	e, err := h.svc.UpdateEvent(c.Request.Context(), id, req)
	if err != nil {
		h.log.Warn().Err(err).Int64("event_id", id).Msg("event update refused")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, e)
}

// UpdateStatus answers PUT /api/events/:id/status?status=APPROVED.
func (h *EventHandler) UpdateStatus(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q dto.EventStatusQuery
	if !bindQuery(c, h.log, &q) {
		return
	}

	e, err := h.svc.UpdateStatus(c.Request.Context(), id, q.Status)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, e)
}

func (h *EventHandler) Delete(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteEvent(c.Request.Context(), id); err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, map[string]int64{"deletedId": id})
}

func (h *EventHandler) Exists(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	exists, err := h.svc.Exists(c.Request.Context(), id)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, exists)
}
