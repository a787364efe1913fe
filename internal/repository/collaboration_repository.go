package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/model"
)

type CollaborationRepositoryInterface interface {
	Create(ctx context.Context, c *model.CollaborationRequest) error
	GetByID(ctx context.Context, id int) (*model.CollaborationRequest, error)
	List(ctx context.Context, filter model.CollaborationFilter, offset, limit int) ([]model.CollaborationRequest, int, error)
	UpdateStatus(ctx context.Context, id int, status, notes, reviewedBy string) (*model.CollaborationRequest, error)
}

type CollaborationRepository struct {
	DB *sqlx.DB
}

const collaborationColumns = `id, organization, contact_name, email, phone, collaboration_type, message,
        status, admin_notes, reviewed_by, reviewed_at, created_at, updated_at`

func (r *CollaborationRepository) Create(ctx context.Context, c *model.CollaborationRequest) error {
	c.Status = model.CollaborationPending
	query := `
        INSERT INTO collaboration_requests
            (organization, contact_name, email, phone, collaboration_type, message, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at
    `
	return r.DB.QueryRowxContext(ctx, query,
		c.Organization,
		c.ContactName,
		c.Email,
		c.Phone,
		c.CollaborationType,
		c.Message,
		c.Status,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *CollaborationRepository) GetByID(ctx context.Context, id int) (*model.CollaborationRequest, error) {
	var c model.CollaborationRequest
	query := fmt.Sprintf(`SELECT %s FROM collaboration_requests WHERE id = $1`, collaborationColumns)
	if err := r.DB.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("collaboration request", id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CollaborationRepository) List(ctx context.Context, filter model.CollaborationFilter, offset, limit int) ([]model.CollaborationRequest, int, error) {
	var w where
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.Type != "" {
		w.add("collaboration_type = $%d", filter.Type)
	}
	if filter.Search != "" {
		w.addSearch(filter.Search, "organization", "contact_name", "email")
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM collaboration_requests"+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	suffix, args := w.page(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM collaboration_requests%s ORDER BY created_at DESC, id DESC%s`,
		collaborationColumns, w.String(), suffix)

	requests := []model.CollaborationRequest{}
	if err := r.DB.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// UpdateStatus records a triage decision and returns the updated row.
func (r *CollaborationRepository) UpdateStatus(ctx context.Context, id int, status, notes, reviewedBy string) (*model.CollaborationRequest, error) {
	var c model.CollaborationRequest
	query := fmt.Sprintf(`
        UPDATE collaboration_requests
        SET status = $2, admin_notes = $3, reviewed_by = $4, reviewed_at = NOW(), updated_at = NOW()
        WHERE id = $1
        RETURNING %s`, collaborationColumns)
	if err := r.DB.GetContext(ctx, &c, query, id, status, notes, reviewedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("collaboration request", id)
		}
		return nil, err
	}
	return &c, nil
}

var _ CollaborationRepositoryInterface = (*CollaborationRepository)(nil)
