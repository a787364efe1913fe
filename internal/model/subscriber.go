// internal/model/subscriber.go
package model

import "time"

type Subscriber struct {
	ID               int        `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	Active           bool       `db:"is_active" json:"is_active"`
	UnsubscribeToken string     `db:"unsubscribe_token" json:"-"`
	SubscribedAt     time.Time  `db:"subscribed_at" json:"subscribed_at"`
	UnsubscribedAt   *time.Time `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// SubscriberStats is the aggregate returned by GET /newsletter/stats.
type SubscriberStats struct {
	Total        int `db:"total" json:"total"`
	Active       int `db:"active" json:"active"`
	Unsubscribed int `db:"unsubscribed" json:"unsubscribed"`
	Today        int `db:"today" json:"today"`
}
