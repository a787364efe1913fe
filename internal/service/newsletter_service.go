// internal/service/newsletter_service.go
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/metrics"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/repository"
)

type NewsletterService struct {
	SubscriberRepo repository.SubscriberRepositoryInterface
	MessageRepo    repository.MessageRepositoryInterface
	DeliveryRepo   repository.DeliveryRepositoryInterface
	Logger         *zap.Logger
}

// UnsubscribeResult reports what an unsubscribe call did. Known is false when
// no subscriber holds the token; Unsubscribed is false when the subscriber
// was already inactive.
type UnsubscribeResult struct {
	Email        string
	Known        bool
	Unsubscribed bool
}

// MessageDetails is a ledger row with its per-recipient outcomes.
type MessageDetails struct {
	model.BroadcastMessage
	DeliveryStats map[string]int   `json:"delivery_stats"`
	Deliveries    []model.Delivery `json:"deliveries"`
}

func (s *NewsletterService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// NormalizeEmail trims and lower-cases an address and checks it parses as a
// bare addr-spec.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", appErrors.NewValidation("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", appErrors.NewValidation("email", "is not a valid email address")
	}
	return email, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Subscribe registers email. An inactive subscriber is reactivated in place
// with a fresh token; an active one yields ErrAlreadySubscribed.
func (s *NewsletterService) Subscribe(ctx context.Context, rawEmail string) (*model.Subscriber, error) {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	existing, err := s.SubscriberRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	if existing != nil {
		if existing.Active {
			return nil, appErrors.ErrAlreadySubscribed
		}
		sub, err := s.SubscriberRepo.Reactivate(ctx, existing.ID, newToken())
		if err != nil {
			return nil, err
		}
		metrics.RecordSubscription("reactivated")
		s.log().Info("subscriber reactivated", zap.String("email", email))
		return sub, nil
	}

	sub := &model.Subscriber{Email: email, UnsubscribeToken: newToken()}
	if err := s.SubscriberRepo.Create(ctx, sub); err != nil {
		return nil, err
	}
	metrics.RecordSubscription("subscribed")
	s.log().Info("subscriber added", zap.String("email", email))
	return sub, nil
}

// Unsubscribe deactivates the subscriber holding token. Repeating the call is
// harmless: it reports Unsubscribed=false and never reactivates.
func (s *NewsletterService) Unsubscribe(ctx context.Context, token string) (*UnsubscribeResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.NewValidation("token", "is required")
	}

	sub, ok, err := s.SubscriberRepo.Deactivate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("deactivate subscriber: %w", err)
	}
	if ok {
		metrics.RecordSubscription("unsubscribed")
		s.log().Info("subscriber unsubscribed", zap.String("email", sub.Email))
		return &UnsubscribeResult{Email: sub.Email, Known: true, Unsubscribed: true}, nil
	}

	existing, err := s.SubscriberRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}
	if existing == nil {
		return &UnsubscribeResult{}, nil
	}
	return &UnsubscribeResult{Email: existing.Email, Known: true}, nil
}

func (s *NewsletterService) Stats(ctx context.Context) (model.SubscriberStats, error) {
	return s.SubscriberRepo.Stats(ctx)
}

// ListSubscribers returns every active subscriber, newest first.
func (s *NewsletterService) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	return s.SubscriberRepo.ListActive(ctx)
}

func (s *NewsletterService) DeleteSubscriber(ctx context.Context, rawEmail string) error {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" {
		return appErrors.NewValidation("email", "is required")
	}
	deleted, err := s.SubscriberRepo.Delete(ctx, email)
	if err != nil {
		return err
	}
	if !deleted {
		return appErrors.NewNotFound("subscriber", email)
	}
	s.log().Info("subscriber deleted", zap.String("email", email))
	return nil
}

// ListMessages fetches ledger history with pagination
func (s *NewsletterService) ListMessages(ctx context.Context, page, pageSize int) ([]model.BroadcastMessage, map[string]int, error) {
	page, pageSize, offset := normalizePage(page, pageSize)

	messages, total, err := s.MessageRepo.List(ctx, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return messages, paginationMap(page, pageSize, total), nil
}

// GetMessage returns a ledger row with its delivery stats and per-recipient rows.
func (s *NewsletterService) GetMessage(ctx context.Context, id int) (*MessageDetails, error) {
	msg, err := s.MessageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &MessageDetails{
		BroadcastMessage: *msg,
		DeliveryStats:    map[string]int{"total": 0, model.DeliveryStatusSent: 0, model.DeliveryStatusFailed: 0},
		Deliveries:       []model.Delivery{},
	}
	if s.DeliveryRepo == nil {
		return details, nil
	}
	if details.DeliveryStats, err = s.DeliveryRepo.StatsByMessage(ctx, id); err != nil {
		return nil, err
	}
	deliveries, err := s.DeliveryRepo.ListByMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if deliveries != nil {
		details.Deliveries = deliveries
	}
	return details, nil
}
