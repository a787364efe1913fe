package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/model"
)

// SubscriberRepositoryInterface is the recipient store.
type SubscriberRepositoryInterface interface {
	ListActive(ctx context.Context) ([]model.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*model.Subscriber, error)
	Create(ctx context.Context, s *model.Subscriber) error
	Reactivate(ctx context.Context, id int, token string) (*model.Subscriber, error)
	Deactivate(ctx context.Context, token string) (*model.Subscriber, bool, error)
	Delete(ctx context.Context, email string) (bool, error)
	Stats(ctx context.Context) (model.SubscriberStats, error)
}

type SubscriberRepository struct {
	DB *sqlx.DB
}

const subscriberColumns = `id, email, is_active, unsubscribe_token, subscribed_at, unsubscribed_at, updated_at`

func (r *SubscriberRepository) ListActive(ctx context.Context) ([]model.Subscriber, error) {
	subs := []model.Subscriber{}
	query := `SELECT ` + subscriberColumns + ` FROM newsletter_subscribers
        WHERE is_active = TRUE
        ORDER BY subscribed_at DESC, id DESC`
	if err := r.DB.SelectContext(ctx, &subs, query); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	return r.getOne(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE email = $1`, email)
}

func (r *SubscriberRepository) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	return r.getOne(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE unsubscribe_token = $1`, token)
}

func (r *SubscriberRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.Subscriber, error) {
	var s model.Subscriber
	if err := r.DB.GetContext(ctx, &s, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts an active subscriber. A duplicate email yields ErrAlreadySubscribed.
func (r *SubscriberRepository) Create(ctx context.Context, s *model.Subscriber) error {
	query := `
        INSERT INTO newsletter_subscribers (email, is_active, unsubscribe_token, subscribed_at, updated_at)
        VALUES ($1, TRUE, $2, NOW(), NOW())
        RETURNING id, is_active, subscribed_at, updated_at
    `
	err := r.DB.QueryRowxContext(ctx, query, s.Email, s.UnsubscribeToken).
		Scan(&s.ID, &s.Active, &s.SubscribedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return appErrors.ErrAlreadySubscribed
	}
	return err
}

// Reactivate flips an inactive row back to active with a fresh token and timestamps.
func (r *SubscriberRepository) Reactivate(ctx context.Context, id int, token string) (*model.Subscriber, error) {
	query := `
        UPDATE newsletter_subscribers
        SET is_active = TRUE, unsubscribe_token = $2, subscribed_at = NOW(),
            unsubscribed_at = NULL, updated_at = NOW()
        WHERE id = $1 AND is_active = FALSE
        RETURNING ` + subscriberColumns
	var s model.Subscriber
	if err := r.DB.GetContext(ctx, &s, query, id, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// someone reactivated it first
			return nil, appErrors.ErrAlreadySubscribed
		}
		return nil, err
	}
	return &s, nil
}

// Deactivate unsubscribes the active row holding token. ok is false when none matched.
func (r *SubscriberRepository) Deactivate(ctx context.Context, token string) (*model.Subscriber, bool, error) {
	query := `
        UPDATE newsletter_subscribers
        SET is_active = FALSE, unsubscribed_at = NOW(), updated_at = NOW()
        WHERE unsubscribe_token = $1 AND is_active = TRUE
        RETURNING ` + subscriberColumns
	var s model.Subscriber
	if err := r.DB.GetContext(ctx, &s, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &s, true, nil
}

func (r *SubscriberRepository) Delete(ctx context.Context, email string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM newsletter_subscribers WHERE email = $1`, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SubscriberRepository) Stats(ctx context.Context) (model.SubscriberStats, error) {
	var st model.SubscriberStats
	query := `
        SELECT
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE is_active) AS active,
            COUNT(*) FILTER (WHERE NOT is_active) AS unsubscribed,
            COUNT(*) FILTER (WHERE is_active AND subscribed_at >= date_trunc('day', NOW())) AS today
        FROM newsletter_subscribers
    `
	err := r.DB.GetContext(ctx, &st, query)
	return st, err
}

var _ SubscriberRepositoryInterface = (*SubscriberRepository)(nil)
