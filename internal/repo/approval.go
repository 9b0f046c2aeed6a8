package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"roombooker/internal/model"
)

type approvalRepository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewApprovalRepository(db *dbpg.DB, log *zerolog.Logger) (ApprovalRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &approvalRepository{db: db, log: log}, nil
}

const approvalColumns = `id, event_id, reviewer_id, status, comments, created_at, updated_at`

func scanApproval(row scanner) (*model.Approval, error) {
	var a model.Approval
	if err := row.Scan(&a.ID, &a.EventID, &a.ReviewerID, &a.Status, &a.Comments, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *approvalRepository) Upsert(ctx context.Context, a *model.Approval) error {
	query := `
		INSERT INTO approvals (event_id, reviewer_id, status, comments)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO UPDATE
		SET reviewer_id = EXCLUDED.reviewer_id,
		    status      = EXCLUDED.status,
		    comments    = EXCLUDED.comments,
		    updated_at  = NOW()
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowContext(ctx, query, a.EventID, a.ReviewerID, a.Status, a.Comments).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert approval: %w", err)
	}
	return nil
}

func (r *approvalRepository) GetByID(ctx context.Context, id int64) (*model.Approval, error) {
	return r.get(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id)
}

func (r *approvalRepository) GetByEventID(ctx context.Context, eventID int64) (*model.Approval, error) {
	return r.get(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE event_id = $1`, eventID)
}

func (r *approvalRepository) get(ctx context.Context, query string, arg int64) (*model.Approval, error) {
	a, err := scanApproval(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApprovalNotFound
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

func (r *approvalRepository) List(ctx context.Context) ([]model.Approval, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+approvalColumns+` FROM approvals ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	defer rows.Close()

	var approvals []model.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvals: %w", err)
	}
	return approvals, nil
}
