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

type DonationRepositoryInterface interface {
	Create(ctx context.Context, d *model.Donation) error
	MarkAcknowledged(ctx context.Context, id int) error
	List(ctx context.Context, filter model.DonationFilter, offset, limit int) ([]model.Donation, int, error)
}

type DonationRepository struct {
	DB *sqlx.DB
}

func (r *DonationRepository) Create(ctx context.Context, d *model.Donation) error {
	query := `
        INSERT INTO donations (donor_name, email, amount, currency, message, anonymous, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at
    `
	return r.DB.QueryRowxContext(ctx, query,
		d.DonorName,
		d.Email,
		d.Amount,
		d.Currency,
		d.Message,
		d.Anonymous,
		d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DonationRepository) MarkAcknowledged(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE donations SET acknowledged_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewNotFound("donation", id)
	}
	return nil
}

func (r *DonationRepository) List(ctx context.Context, filter model.DonationFilter, offset, limit int) ([]model.Donation, int, error) {
	var w where
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		w.addSearch(filter.Search, "donor_name", "email")
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at < $%d", *filter.To)
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM donations"+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	suffix, args := w.page(limit, offset)
	query := fmt.Sprintf(`
        SELECT id, donor_name, email, amount, currency, message, anonymous, status, acknowledged_at, created_at
        FROM donations%s
        ORDER BY created_at DESC, id DESC%s`, w.String(), suffix)

	donations := []model.Donation{}
	if err := r.DB.SelectContext(ctx, &donations, query, args...); err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}

// GetByID is used by the acknowledgement path to reload a donation.
func (r *DonationRepository) GetByID(ctx context.Context, id int) (*model.Donation, error) {
	var d model.Donation
	query := `
        SELECT id, donor_name, email, amount, currency, message, anonymous, status, acknowledged_at, created_at
        FROM donations WHERE id = $1
    `
	if err := r.DB.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("donation", id)
		}
		return nil, err
	}
	return &d, nil
}

var _ DonationRepositoryInterface = (*DonationRepository)(nil)
