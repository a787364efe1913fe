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

// MessageRepositoryInterface is the message ledger.
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *model.BroadcastMessage) error
	UpdateCounts(ctx context.Context, id, success, failed int) error
	Finalize(ctx context.Context, id, success, failed int, status string) error
	List(ctx context.Context, offset, limit int) ([]model.BroadcastMessage, int, error)
	GetByID(ctx context.Context, id int) (*model.BroadcastMessage, error)
}

type MessageRepository struct {
	DB *sqlx.DB
}

const messageColumns = `id, subject, body, message_type, total_recipients, successful_sends,
        failed_sends, status, sent_at, completed_at`

// Create inserts the ledger row with zero counts and status sending.
func (r *MessageRepository) Create(ctx context.Context, m *model.BroadcastMessage) error {
	m.SuccessfulSends, m.FailedSends = 0, 0
	m.Status = model.MessageStatusSending
	query := `
        INSERT INTO newsletter_messages
            (subject, body, message_type, total_recipients, successful_sends, failed_sends, status, sent_at)
        VALUES ($1, $2, $3, $4, 0, 0, $5, NOW())
        RETURNING id, sent_at
    `
	return r.DB.QueryRowxContext(ctx, query, m.Subject, m.Body, m.MessageType, m.TotalRecipients, m.Status).
		Scan(&m.ID, &m.SentAt)
}

// UpdateCounts checkpoints running counts while a broadcast is in flight.
func (r *MessageRepository) UpdateCounts(ctx context.Context, id, success, failed int) error {
	query := `UPDATE newsletter_messages SET successful_sends = $2, failed_sends = $3 WHERE id = $1`
	return r.exec(ctx, id, query, id, success, failed)
}

func (r *MessageRepository) Finalize(ctx context.Context, id, success, failed int, status string) error {
	query := `
        UPDATE newsletter_messages
        SET successful_sends = $2, failed_sends = $3, status = $4, completed_at = NOW()
        WHERE id = $1
    `
	return r.exec(ctx, id, query, id, success, failed, status)
}

func (r *MessageRepository) exec(ctx context.Context, id int, query string, args ...interface{}) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("message", id)
	}
	return nil
}

func (r *MessageRepository) List(ctx context.Context, offset, limit int) ([]model.BroadcastMessage, int, error) {
	messages := []model.BroadcastMessage{}
	query := fmt.Sprintf(`SELECT %s FROM newsletter_messages ORDER BY sent_at DESC, id DESC LIMIT $1 OFFSET $2`, messageColumns)
	if err := r.DB.SelectContext(ctx, &messages, query, limit, offset); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM newsletter_messages`); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int) (*model.BroadcastMessage, error) {
	var m model.BroadcastMessage
	query := fmt.Sprintf(`SELECT %s FROM newsletter_messages WHERE id = $1`, messageColumns)
	if err := r.DB.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("message", id)
		}
		return nil, err
	}
	return &m, nil
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
