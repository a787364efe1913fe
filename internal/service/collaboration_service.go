// internal/service/collaboration_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/auth"
	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/repository"
)

type CollaborationService struct {
	CollaborationRepo repository.CollaborationRepositoryInterface
	Logger            *zap.Logger
}

type CollaborationInput struct {
	Organization      string
	ContactName       string
	Email             string
	Phone             string
	CollaborationType string
	Message           string
}

func (s *CollaborationService) Submit(ctx context.Context, in CollaborationInput) (*model.CollaborationRequest, error) {
	req := &model.CollaborationRequest{
		Organization:      strings.TrimSpace(in.Organization),
		ContactName:       strings.TrimSpace(in.ContactName),
		Phone:             strings.TrimSpace(in.Phone),
		CollaborationType: strings.ToLower(strings.TrimSpace(in.CollaborationType)),
		Message:           strings.TrimSpace(in.Message),
	}
	required := []struct{ field, value string }{
		{"organization", req.Organization},
		{"contact_name", req.ContactName},
		{"collaboration_type", req.CollaborationType},
		{"message", req.Message},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, appErrors.NewValidation(r.field, "is required")
		}
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	req.Email = email

	if err := s.CollaborationRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create collaboration request: %w", err)
	}
	s.Logger.Info("collaboration request received",
		zap.Int("id", req.ID),
		zap.String("organization", req.Organization),
		zap.String("type", req.CollaborationType),
	)
	return req, nil
}

func (s *CollaborationService) List(ctx context.Context, filter model.CollaborationFilter, page, pageSize int) ([]model.CollaborationRequest, map[string]int, error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	requests, total, err := s.CollaborationRepo.List(ctx, filter, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return requests, paginationMap(page, pageSize, total), nil
}

// UpdateStatus records a triage decision made by actor.
func (s *CollaborationService) UpdateStatus(ctx context.Context, id int, status, notes string, actor auth.Principal) (*model.CollaborationRequest, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.ValidCollaborationStatus(status) {
		return nil, appErrors.NewValidation("status", "must be one of pending, reviewing, approved, rejected")
	}
	req, err := s.CollaborationRepo.UpdateStatus(ctx, id, status, strings.TrimSpace(notes), actor.ActorName())
	if err != nil {
		return nil, err
	}
	s.Logger.Info("collaboration request triaged",
		zap.Int("id", id),
		zap.String("status", status),
		zap.String("reviewed_by", req.ReviewedBy),
	)
	return req, nil
}
