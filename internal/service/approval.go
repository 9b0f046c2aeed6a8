package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"roombooker/internal/apperr"
	"roombooker/internal/clients"
	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/repo"
)

const (
	MsgReviewerNotFound      = "Reviewer not found"
	MsgReviewerRoleFailed    = "Error while validating reviewer role"
	MsgReviewerForbidden     = "Only ADMIN or SUPERADMIN can approve or reject events"
	MsgEventExistenceFailed  = "Error while checking event existence"
	MsgCallbackEventNotFound = "event not found in event service"
	MsgCallbackFailed        = "event service failure"
	MsgApprovalNotFound      = "Approval not found"
	MsgDecisionFinal         = "Event already has a different final decision"
)

// Result is the outcome of ProcessApproval. Refusals keep the approval PENDING and carry the
// reason in Response.Comments.
type Result struct {
	Status   int
	Response dto.ApprovalResponse
}

func (r Result) Refused() bool {
	return r.Status != http.StatusOK
}

type ApprovalDeps struct {
	Approvals repo.ApprovalRepository
	Users     clients.UserClient
	Events    clients.EventClient
	Log       *zerolog.Logger
}

// ApprovalService is the gate in front of event status transitions.
type ApprovalService struct {
	approvals repo.ApprovalRepository
	users     clients.UserClient
	events    clients.EventClient
	log       *zerolog.Logger
}

func NewApprovalService(d ApprovalDeps) *ApprovalService {
	if d.Log == nil {
		nop := zerolog.Nop()
		d.Log = &nop
	}
	return &ApprovalService{
		approvals: d.Approvals,
		users:     d.Users,
		events:    d.Events,
		log:       d.Log,
	}
}

// ProcessApproval authorizes the reviewer, then records the decision and applies it to the event.
// A recorded decision is never overturned; repeating it is allowed so a failed callback can be
// retried. A failed callback to the event service is returned as an error; the approval record is
// already written at that point.
func (s *ApprovalService) ProcessApproval(ctx context.Context, req dto.ApprovalRequest) (Result, error) {
	role, err := s.users.Role(ctx, req.ReviewerID)
	switch {
	case apperr.IsNotFound(err):
		return refuse(req, http.StatusNotFound, MsgReviewerNotFound), nil
	case err != nil || role == model.Unknown:
		s.log.Warn().Err(err).Int64("reviewer_id", req.ReviewerID).Str("role", role).Msg("reviewer role unresolved")
		return refuse(req, http.StatusInternalServerError, MsgReviewerRoleFailed), nil
	case role != model.RoleAdmin && role != model.RoleSuperAdmin:
		return refuse(req, http.StatusForbidden, MsgReviewerForbidden), nil
	}

	exists, err := s.events.Exists(ctx, req.EventID)
	switch {
	case apperr.IsNotFound(err), err == nil && !exists:
		return refuse(req, http.StatusNotFound, MsgEventNotFound), nil
	case err != nil:
		s.log.Warn().Err(err).Int64("event_id", req.EventID).Msg("event existence unresolved")
		return refuse(req, http.StatusInternalServerError, MsgEventExistenceFailed), nil
	}

	status, ok := model.ParseStatus(req.Status)
	if !ok || !status.Terminal() {
		return refuse(req, http.StatusBadRequest, MsgInvalidStatus), nil
	}

	prior, err := s.approvals.GetByEventID(ctx, req.EventID)
	switch {
	case err == nil && prior.Status.Terminal() && prior.Status != status:
		s.log.Warn().Int64("event_id", req.EventID).Str("recorded", string(prior.Status)).
			Str("requested", string(status)).Msg("decision differs from the recorded one")
		return Result{}, apperr.Conflict(MsgDecisionFinal)
	case err != nil && !errors.Is(err, repo.ErrApprovalNotFound):
		return Result{}, apperr.Internal("failed to read approval", err)
	}

	a := &model.Approval{
		EventID:    req.EventID,
		ReviewerID: req.ReviewerID,
		Status:     status,
		Comments:   req.Comments,
	}
	if err := s.approvals.Upsert(ctx, a); err != nil {
		return Result{}, apperr.Internal("failed to save approval", err)
	}

	if err := s.events.UpdateStatus(ctx, req.EventID, status); err != nil {
		return Result{}, s.callbackErr(req.EventID, "update_status", err)
	}
	// A rejected event goes away together with its booking.
	if status == model.StatusRejected {
		if err := s.events.Delete(ctx, req.EventID); err != nil {
			return Result{}, s.callbackErr(req.EventID, "delete", err)
		}
	}

	s.log.Info().
		Int64("approval_id", a.ID).
		Int64("event_id", a.EventID).
		Int64("reviewer_id", a.ReviewerID).
		Str("status", string(a.Status)).
		Msg("approval processed")
	return Result{Status: http.StatusOK, Response: dto.NewApprovalResponse(a)}, nil
}

func (s *ApprovalService) callbackErr(eventID int64, op string, err error) error {
	s.log.Error().Err(err).Int64("event_id", eventID).Str("operation", op).Msg("event service callback failed")
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return apperr.Wrap(apperr.KindNotFound, MsgCallbackEventNotFound, err)
	case apperr.KindConflict:
		// The event already holds a different final status.
		return apperr.Wrap(apperr.KindConflict, apperr.Message(err), err)
	}
	return apperr.Wrap(apperr.KindUpstream, MsgCallbackFailed, err).WithStatus(http.StatusBadGateway)
}

func refuse(req dto.ApprovalRequest, status int, reason string) Result {
	return Result{
		Status: status,
		Response: dto.ApprovalResponse{
			EventID:    req.EventID,
			ReviewerID: req.ReviewerID,
			Status:     string(model.StatusPending),
			Comments:   reason,
		},
	}
}

func (s *ApprovalService) ListApprovals(ctx context.Context) ([]model.Approval, error) {
	approvals, err := s.approvals.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list approvals", err)
	}
	return approvals, nil
}

func (s *ApprovalService) GetApproval(ctx context.Context, id int64) (*model.Approval, error) {
	a, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, approvalErr(err)
	}
	return a, nil
}

func (s *ApprovalService) GetByEvent(ctx context.Context, eventID int64) (*model.Approval, error) {
	a, err := s.approvals.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, approvalErr(err)
	}
	return a, nil
}

func approvalErr(err error) error {
	if errors.Is(err, repo.ErrApprovalNotFound) {
		return apperr.NotFound(MsgApprovalNotFound).WithCode(dto.ApprovalNotFound)
	}
	return apperr.Internal("approval store failure", err)
}
