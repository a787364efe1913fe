// internal/service/donation_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/mail"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/repository"
)

const DonationStatusPledged = "pledged"

type DonationService struct {
	DonationRepo repository.DonationRepositoryInterface
	Transport    mail.Transport // optional, sends the thank-you email
	Logger       *zap.Logger
}

type DonationInput struct {
	DonorName string
	Email     string
	Amount    float64
	Currency  string
	Message   string
	Anonymous bool
}

const donationThanksText = `Dear {donor_name},

Thank you for your pledge of {amount} {currency}. Your support makes our work possible.

We will be in touch with details on how your contribution is used.
`

const donationThanksHTML = `<p>Dear {donor_name},</p>
<p>Thank you for your pledge of <strong>{amount} {currency}</strong>. Your support makes our work possible.</p>
<p>We will be in touch with details on how your contribution is used.</p>`

// Record stores a pledge and sends an acknowledgement. A failed
// acknowledgement is logged; the donation is still recorded.
func (s *DonationService) Record(ctx context.Context, in DonationInput) (*model.Donation, error) {
	d, err := buildDonation(in)
	if err != nil {
		return nil, err
	}
	if err := s.DonationRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}
	s.Logger.Info("donation recorded", zap.Int("donation_id", d.ID), zap.Float64("amount", d.Amount), zap.String("currency", d.Currency))

	if s.Transport != nil {
		s.acknowledge(ctx, d)
	}
	return d, nil
}

func buildDonation(in DonationInput) (*model.Donation, error) {
	name := strings.TrimSpace(in.DonorName)
	if name == "" {
		return nil, appErrors.NewValidation("donor_name", "is required")
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, appErrors.NewValidation("amount", "must be greater than zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, appErrors.NewValidation("currency", "must be a 3-letter code")
	}
	return &model.Donation{
		DonorName: name,
		Email:     email,
		Amount:    in.Amount,
		Currency:  currency,
		Message:   strings.TrimSpace(in.Message),
		Anonymous: in.Anonymous,
		Status:    DonationStatusPledged,
	}, nil
}

func (s *DonationService) acknowledge(ctx context.Context, d *model.Donation) {
	data := map[string]string{
		"donor_name": d.DonorName,
		"amount":     fmt.Sprintf("%.2f", d.Amount),
		"currency":   d.Currency,
	}
	_, err := s.Transport.Send(ctx, mail.Message{
		To:      d.Email,
		Subject: "Thank you for your donation",
		Text:    RenderTemplate(donationThanksText, data),
		HTML:    RenderTemplate(donationThanksHTML, escapeValues(data)),
	})
	if err != nil {
		s.Logger.Warn("donation acknowledgement failed", zap.Int("donation_id", d.ID), zap.Error(err))
		return
	}
	if err := s.DonationRepo.MarkAcknowledged(ctx, d.ID); err != nil {
		s.Logger.Warn("failed to mark donation acknowledged", zap.Int("donation_id", d.ID), zap.Error(err))
		return
	}
	now := time.Now()
	d.AcknowledgedAt = &now
}

// List returns donations matching filter with pagination.
func (s *DonationService) List(ctx context.Context, filter model.DonationFilter, page, pageSize int) ([]model.Donation, map[string]int, error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	donations, total, err := s.DonationRepo.List(ctx, filter, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return donations, paginationMap(page, pageSize, total), nil
}
