package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/config"
	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/lock"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
	"github.com/unclebandit/ngo-backoffice/internal/mail"
	"github.com/unclebandit/ngo-backoffice/internal/metrics"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/repository"
)

const (
	MaxSubjectLength = 200
	MaxBodyLength    = 10000

	// MaxMessageTypeLength matches the message_type column width.
	MaxMessageTypeLength = 50

	DefaultMessageType = "newsletter"

	broadcastLockKey = "newsletter:broadcast"
	flushTimeout     = 10 * time.Second
)

// Result statuses reported to callers. The ledger keeps its own status values.
const (
	BroadcastFull    = "full"
	BroadcastPartial = "partial"
	BroadcastFailed  = "failed"
)

// DispatchConfig tunes throttling and retry of a broadcast run.
type DispatchConfig struct {
	BatchSize          int
	ItemDelay          time.Duration
	BatchDelay         time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	UnsubscribeBaseURL string
	IncludeErrorDetail bool
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		BatchSize:    5,
		ItemDelay:    200 * time.Millisecond,
		BatchDelay:   2 * time.Second,
		MaxRetries:   0,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// DispatchConfigFrom maps the newsletter section of the app config.
func DispatchConfigFrom(c config.NewsletterConfig) DispatchConfig {
	return DispatchConfig{
		BatchSize:          c.BatchSize,
		ItemDelay:          c.ItemDelay,
		BatchDelay:         c.BatchDelay,
		MaxRetries:         c.MaxRetries,
		RetryBackoff:       c.RetryBackoff,
		UnsubscribeBaseURL: c.UnsubscribeBaseURL,
		IncludeErrorDetail: c.IncludeErrorDetail,
	}
}

type BroadcastRequest struct {
	Subject     string
	Body        string
	MessageType string
}

// DeliveryFailure is the per-recipient error detail of a broadcast.
type DeliveryFailure struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type BroadcastResult struct {
	Success        bool              `json:"success"`
	Status         string            `json:"status"`
	Message        string            `json:"message"`
	MessageID      int               `json:"message_id"`
	Total          int               `json:"total"`
	SuccessCount   int               `json:"success_count"`
	FailCount      int               `json:"fail_count"`
	FailedEmails   []string          `json:"failed_emails"`
	Failures       []DeliveryFailure `json:"failures,omitempty"`
	ErrorBreakdown map[string]int    `json:"error_breakdown,omitempty"`
}

// Dispatcher sends one broadcast at a time to the active subscriber snapshot.
type Dispatcher struct {
	Subscribers repository.SubscriberRepositoryInterface
	Ledger      repository.MessageRepositoryInterface
	Deliveries  repository.DeliveryRepositoryInterface // optional
	Transport   mail.Transport
	Locker      lock.Locker // optional
	Config      DispatchConfig
	Logger      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	subscribers repository.SubscriberRepositoryInterface,
	ledger repository.MessageRepositoryInterface,
	deliveries repository.DeliveryRepositoryInterface,
	transport mail.Transport,
	cfg DispatchConfig,
	log *zap.Logger,
) *Dispatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultDispatchConfig().BatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		Subscribers: subscribers,
		Ledger:      ledger,
		Deliveries:  deliveries,
		Transport:   transport,
		Config:      cfg,
		Logger:      log,
		sleep:       sleepContext,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ValidateBroadcast trims and checks subject and body lengths in characters.
func ValidateBroadcast(req BroadcastRequest) (BroadcastRequest, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	req.MessageType = strings.TrimSpace(req.MessageType)

	switch {
	case req.Subject == "":
		return req, appErrors.NewValidation("subject", "is required")
	case utf8.RuneCountInString(req.Subject) > MaxSubjectLength:
		return req, appErrors.NewValidation("subject", fmt.Sprintf("must be at most %d characters", MaxSubjectLength))
	case req.Body == "":
		return req, appErrors.NewValidation("message", "is required")
	case utf8.RuneCountInString(req.Body) > MaxBodyLength:
		return req, appErrors.NewValidation("message", fmt.Sprintf("must be at most %d characters", MaxBodyLength))
	case utf8.RuneCountInString(req.MessageType) > MaxMessageTypeLength:
		return req, appErrors.NewValidation("messageType", fmt.Sprintf("must be at most %d characters", MaxMessageTypeLength))
	}
	if req.MessageType == "" {
		req.MessageType = DefaultMessageType
	}
	return req, nil
}

// Broadcast validates req, snapshots the active subscribers and sends to each
// of them in batches. Per-recipient failures are aggregated into the result.
// Validation, no recipients, a held lock and ledger failures abort the run.
//
// When ctx is cancelled mid-run the partial counts are written to the ledger
// with status cancelled and the result is returned along with ctx.Err().
func (d *Dispatcher) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	req, err := ValidateBroadcast(req)
	if err != nil {
		return nil, err
	}
	log := logger.WithRequest(ctx, d.Logger)

	if d.Locker != nil {
		release, err := d.Locker.Acquire(ctx, broadcastLockKey)
		if errors.Is(err, lock.ErrHeld) {
			return nil, appErrors.ErrBroadcastInProgress
		}
		if err != nil {
			return nil, err
		}
		defer release()
	}

	recipients, err := d.Subscribers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	if len(recipients) == 0 {
		return nil, appErrors.ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := &model.BroadcastMessage{
		Subject:         req.Subject,
		Body:            req.Body,
		MessageType:     req.MessageType,
		TotalRecipients: len(recipients),
	}
	if err := d.Ledger.Create(ctx, msg); err != nil {
		return nil, appErrors.NewLedger("create", err)
	}
	log = log.With(zap.Int("message_id", msg.ID))
	log.Info("broadcast started", zap.Int("recipients", len(recipients)), zap.String("message_type", msg.MessageType))

	d.verify(ctx, log)

	started := time.Now()
	result := &BroadcastResult{
		MessageID:      msg.ID,
		Total:          len(recipients),
		FailedEmails:   []string{},
		ErrorBreakdown: map[string]int{},
	}

	runErr := d.run(ctx, log, msg, recipients, result)
	if runErr != nil {
		status := model.MessageStatusCancelled
		d.summarize(result, status)
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := d.Ledger.Finalize(flushCtx, msg.ID, result.SuccessCount, result.FailCount, status); err != nil {
			log.Error("failed to flush cancelled broadcast", zap.Error(err))
			runErr = errors.Join(runErr, appErrors.NewLedger("finalize", err))
		}
		metrics.RecordBroadcast(status, time.Since(started))
		log.Warn("broadcast cancelled",
			zap.Int("success", result.SuccessCount),
			zap.Int("failed", result.FailCount),
			zap.Error(runErr),
		)
		return result, runErr
	}

	status := model.MessageStatusCompleted
	if result.SuccessCount == 0 {
		status = model.MessageStatusFailed
	}
	d.summarize(result, status)
	if err := d.Ledger.Finalize(ctx, msg.ID, result.SuccessCount, result.FailCount, status); err != nil {
		log.Error("failed to finalize broadcast", zap.Error(err))
		return result, appErrors.NewLedger("finalize", err)
	}
	metrics.RecordBroadcast(status, time.Since(started))

	log.Info("broadcast finished",
		zap.String("status", result.Status),
		zap.Int("total", result.Total),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailCount),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

// verify runs the transport connectivity check when available. It never fails the run.
func (d *Dispatcher) verify(ctx context.Context, log *zap.Logger) {
	v, ok := d.Transport.(mail.Verifier)
	if !ok {
		return
	}
	if err := v.Verify(ctx); err != nil {
		log.Warn("mail transport verification failed, continuing", zap.Error(err))
	}
}

func (d *Dispatcher) run(ctx context.Context, log *zap.Logger, msg *model.BroadcastMessage, recipients []model.Subscriber, result *BroadcastResult) error {
	size := d.Config.BatchSize
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}

		for i, sub := range recipients[start:end] {
			if err := ctx.Err(); err != nil {
				return err
			}
			d.deliver(ctx, log, msg, sub, result)

			if start+i < end-1 {
				if err := d.sleep(ctx, d.Config.ItemDelay); err != nil {
					return err
				}
			}
		}

		// Checkpoint so a crash leaves partial counts instead of zeros. The
		// final write reconciles, so a failed checkpoint only gets logged.
		if err := d.Ledger.UpdateCounts(ctx, msg.ID, result.SuccessCount, result.FailCount); err != nil {
			log.Error("ledger checkpoint failed", zap.Int("batch_end", end), zap.Error(err))
		}

		if end < len(recipients) {
			if err := d.sleep(ctx, d.Config.BatchDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliver sends to one subscriber and records the outcome on result.
func (d *Dispatcher) deliver(ctx context.Context, log *zap.Logger, msg *model.BroadcastMessage, sub model.Subscriber, result *BroadcastResult) {
	unsubscribe := UnsubscribeURL(d.Config.UnsubscribeBaseURL, sub.UnsubscribeToken)
	htmlBody, textBody := RenderNewsletter(msg.Subject, msg.Body, unsubscribe)
	out := mail.Message{
		To:      sub.Email,
		Subject: msg.Subject,
		HTML:    htmlBody,
		Text:    textBody,
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + unsubscribe + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}

	receipt, attempts, err := d.send(ctx, log, out)

	rec := &model.Delivery{MessageID: msg.ID, Email: sub.Email, Attempts: attempts}
	if err != nil {
		result.FailCount++
		result.FailedEmails = append(result.FailedEmails, sub.Email)
		result.ErrorBreakdown[err.Code]++
		if d.Config.IncludeErrorDetail {
			result.Failures = append(result.Failures, DeliveryFailure{Email: sub.Email, Code: err.Code, Error: err.Message})
		}
		rec.Status = model.DeliveryStatusFailed
		rec.LastError = err.Error()
		metrics.RecordDelivery(model.DeliveryStatusFailed)
		log.Warn("newsletter delivery failed",
			zap.String("email", sub.Email),
			zap.String("code", err.Code),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	} else {
		result.SuccessCount++
		rec.Status = model.DeliveryStatusSent
		rec.TransportID = receipt.MessageID
		metrics.RecordDelivery(model.DeliveryStatusSent)
		log.Debug("newsletter delivered", zap.String("email", sub.Email), zap.String("transport_id", receipt.MessageID))
	}

	if d.Deliveries != nil {
		if err := d.Deliveries.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Warn("failed to record delivery", zap.String("email", sub.Email), zap.Error(err))
		}
	}
}

// send calls the transport, retrying temporary failures up to MaxRetries
// times with linear backoff.
func (d *Dispatcher) send(ctx context.Context, log *zap.Logger, msg mail.Message) (mail.Receipt, int, *mail.TransportError) {
	attempts := 0
	for {
		attempts++
		receipt, err := d.Transport.Send(ctx, msg)
		if err == nil {
			return receipt, attempts, nil
		}
		te := mail.AsTransportError("send_failed", err)
		if !te.Temporary || attempts > d.Config.MaxRetries || ctx.Err() != nil {
			return mail.Receipt{}, attempts, te
		}
		log.Info("retrying temporary delivery failure",
			zap.String("email", msg.To),
			zap.Int("attempt", attempts),
			zap.String("code", te.Code),
		)
		if err := d.sleep(ctx, time.Duration(attempts)*d.Config.RetryBackoff); err != nil {
			return mail.Receipt{}, attempts, te
		}
	}
}

func (d *Dispatcher) summarize(result *BroadcastResult, ledgerStatus string) {
	result.Success = result.SuccessCount > 0
	switch {
	case result.SuccessCount == 0:
		result.Status = BroadcastFailed
	case result.FailCount > 0:
		result.Status = BroadcastPartial
	default:
		result.Status = BroadcastFull
	}

	if ledgerStatus == model.MessageStatusCancelled {
		result.Message = fmt.Sprintf("Broadcast cancelled after %d of %d subscribers (%d sent, %d failed)",
			result.SuccessCount+result.FailCount, result.Total, result.SuccessCount, result.FailCount)
		return
	}
	switch result.Status {
	case BroadcastFull:
		result.Message = fmt.Sprintf("Newsletter sent successfully to %d subscribers", result.SuccessCount)
	case BroadcastPartial:
		result.Message = fmt.Sprintf("Newsletter sent to %d of %d subscribers, %d failed",
			result.SuccessCount, result.Total, result.FailCount)
	default:
		result.Message = fmt.Sprintf("Failed to send newsletter to any of %d subscribers", result.Total)
	}
}
