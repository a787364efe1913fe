// internal/model/donation.go
package model

import "time"

type Donation struct {
	ID             int        `db:"id" json:"id"`
	DonorName      string     `db:"donor_name" json:"donor_name"`
	Email          string     `db:"email" json:"email"`
	Amount         float64    `db:"amount" json:"amount"`
	Currency       string     `db:"currency" json:"currency"`
	Message        string     `db:"message" json:"message,omitempty"`
	Anonymous      bool       `db:"anonymous" json:"anonymous"`
	Status         string     `db:"status" json:"status"` // pledged, received, cancelled
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// DonationFilter narrows the admin donation listing.
type DonationFilter struct {
	Status string
	Search string
	From   *time.Time
	To     *time.Time
}
