// internal/model/broadcast_message.go
package model

import "time"

const (
	MessageStatusSending   = "sending"
	MessageStatusCompleted = "completed"
	MessageStatusCancelled = "cancelled"
	MessageStatusFailed    = "failed"
)

// BroadcastMessage is one row of the message ledger.
type BroadcastMessage struct {
	ID              int        `db:"id" json:"id"`
	Subject         string     `db:"subject" json:"subject"`
	Body            string     `db:"body" json:"body"`
	MessageType     string     `db:"message_type" json:"message_type"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SuccessfulSends int        `db:"successful_sends" json:"successful_sends"`
	FailedSends     int        `db:"failed_sends" json:"failed_sends"`
	Status          string     `db:"status" json:"status"` // sending, completed, cancelled, failed
	SentAt          time.Time  `db:"sent_at" json:"sent_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
