package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"roombooker/internal/apperr"
	"roombooker/internal/dto"
	"roombooker/internal/service"
)

type ApprovalHandler struct {
	svc *service.ApprovalService
	log *zerolog.Logger
}

func NewApprovalHandler(svc *service.ApprovalService, log *zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, log: nopIfNil(log)}
}

// Process answers POST /api/approvals/process. A refused request still carries the PENDING
// approval response with the reason in its comments.
func (h *ApprovalHandler) Process(c *ginext.Context) {
	var req dto.ApprovalRequest
	if !bind(c, h.log, &req) {
		return
	}

	res, err := h.svc.ProcessApproval(c.Request.Context(), req)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	if res.Refused() {
		h.log.Warn().
			Int64("event_id", req.EventID).
			Int64("reviewer_id", req.ReviewerID).
			Int("status", res.Status).
			Str("reason", res.Response.Comments).
			Msg("approval refused")
		dto.ErrorWithData(c, res.Status, refusalCode(res.Status), res.Response.Comments, res.Response)
		return
	}
	dto.SuccessResponse(c, res.Response)
}

func refusalCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return apperr.KindNotFound.String()
	case http.StatusForbidden:
		return apperr.KindForbidden.String()
	case http.StatusBadRequest:
		return dto.FieldIncorrect
	default:
		return apperr.KindInternal.String()
	}
}

func (h *ApprovalHandler) List(c *ginext.Context) {
	approvals, err := h.svc.ListApprovals(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list approvals")
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, approvals)
}

func (h *ApprovalHandler) Get(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.GetApproval(c.Request.Context(), id)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, a)
}

func (h *ApprovalHandler) GetByEvent(c *ginext.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}
	a, err := h.svc.GetByEvent(c.Request.Context(), eventID)
	if err != nil {
		dto.ErrorResponse(c, err)
		return
	}
	dto.SuccessResponse(c, a)
}
