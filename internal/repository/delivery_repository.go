package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/ngo-backoffice/internal/model"
)

// DeliveryRepositoryInterface persists per-recipient outcomes of a broadcast.
type DeliveryRepositoryInterface interface {
	Record(ctx context.Context, d *model.Delivery) error
	ListByMessage(ctx context.Context, messageID int) ([]model.Delivery, error)
	StatsByMessage(ctx context.Context, messageID int) (map[string]int, error)
}

type DeliveryRepository struct {
	DB *sqlx.DB
}

// Record inserts a delivery row and fills in its id and timestamp.
func (r *DeliveryRepository) Record(ctx context.Context, d *model.Delivery) error {
	query := `
        INSERT INTO newsletter_deliveries (message_id, email, status, transport_id, last_error, attempts, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING id, created_at
    `
	return r.DB.QueryRowxContext(ctx, query,
		d.MessageID,
		d.Email,
		d.Status,
		d.TransportID,
		d.LastError,
		d.Attempts,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DeliveryRepository) ListByMessage(ctx context.Context, messageID int) ([]model.Delivery, error) {
	deliveries := []model.Delivery{}
	query := `
        SELECT id, message_id, email, status, transport_id, last_error, attempts, created_at
        FROM newsletter_deliveries
        WHERE message_id = $1
        ORDER BY id
    `
	if err := r.DB.SelectContext(ctx, &deliveries, query, messageID); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *DeliveryRepository) StatsByMessage(ctx context.Context, messageID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM newsletter_deliveries WHERE message_id = $1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, model.DeliveryStatusSent: 0, model.DeliveryStatusFailed: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
