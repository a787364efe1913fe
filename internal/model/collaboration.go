// internal/model/collaboration.go
package model

import "time"

const (
	CollaborationPending   = "pending"
	CollaborationReviewing = "reviewing"
	CollaborationApproved  = "approved"
	CollaborationRejected  = "rejected"
)

type CollaborationRequest struct {
	ID                int        `db:"id" json:"id"`
	Organization      string     `db:"organization" json:"organization"`
	ContactName       string     `db:"contact_name" json:"contact_name"`
	Email             string     `db:"email" json:"email"`
	Phone             string     `db:"phone" json:"phone,omitempty"`
	CollaborationType string     `db:"collaboration_type" json:"collaboration_type"`
	Message           string     `db:"message" json:"message"`
	Status            string     `db:"status" json:"status"`
	AdminNotes        string     `db:"admin_notes" json:"admin_notes,omitempty"`
	ReviewedBy        string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type CollaborationFilter struct {
	Status string
	Type   string
	Search string
}

// ValidCollaborationStatus reports whether s is a triage status.
func ValidCollaborationStatus(s string) bool {
	switch s {
	case CollaborationPending, CollaborationReviewing, CollaborationApproved, CollaborationRejected:
		return true
	}
	return false
}
