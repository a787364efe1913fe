// internal/model/delivery.go
package model

import "time"

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

type Delivery struct {
	ID          int       `db:"id" json:"id"`
	MessageID   int       `db:"message_id" json:"message_id"`
	Email       string    `db:"email" json:"email"`
	Status      string    `db:"status" json:"status"` // sent, failed
	TransportID string    `db:"transport_id" json:"transport_id,omitempty"`
	LastError   string    `db:"last_error" json:"last_error,omitempty"`
	Attempts    int       `db:"attempts" json:"attempts"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
