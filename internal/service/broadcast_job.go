package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/queue"
)

// DefaultBroadcastTopic is the queue name used when none is configured.
const DefaultBroadcastTopic = "newsletter_broadcasts"

// BroadcastJob is the queued form of a broadcast request.
type BroadcastJob struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	MessageType string `json:"message_type"`
	RequestedBy string `json:"requested_by"`
}

// BroadcastJobs publishes broadcasts to a queue and runs them from it.
type BroadcastJobs struct {
	Queue      queue.Queue
	Topic      string
	Dispatcher *Dispatcher
	Logger     *zap.Logger
}

func (j *BroadcastJobs) topic() string {
	if j.Topic == "" {
		return DefaultBroadcastTopic
	}
	return j.Topic
}

// Enqueue validates req up front so bad input is rejected synchronously.
func (j *BroadcastJobs) Enqueue(ctx context.Context, req BroadcastRequest, requestedBy string) error {
	req, err := ValidateBroadcast(req)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(BroadcastJob{
		Subject:     req.Subject,
		Body:        req.Body,
		MessageType: req.MessageType,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return err
	}
	if err := j.Queue.Publish(ctx, j.topic(), payload); err != nil {
		return fmt.Errorf("enqueue broadcast: %w", err)
	}
	j.Logger.Info("broadcast enqueued", zap.String("subject", req.Subject), zap.String("requested_by", requestedBy))
	return nil
}

// Start subscribes Handle to the broadcast topic. Cancelling ctx cancels the
// running broadcast, which then records its partial counts as cancelled.
func (j *BroadcastJobs) Start(ctx context.Context) error {
	return j.Queue.Subscribe(ctx, j.topic(), j.Handle)
}

// Handle runs one queued broadcast. An error asks the queue to try again, so
// it is returned only when nothing was sent: a held broadcast lock, or a
// shutdown before the ledger row was created. Once a row exists the job is
// done, whatever its outcome.
func (j *BroadcastJobs) Handle(ctx context.Context, payload []byte) error {
	var job BroadcastJob
	if err := json.Unmarshal(payload, &job); err != nil {
		j.Logger.Error("dropping malformed broadcast job", zap.Error(err))
		return nil
	}
	log := j.Logger.With(zap.String("subject", job.Subject), zap.String("requested_by", job.RequestedBy))

	result, err := j.Dispatcher.Broadcast(ctx, BroadcastRequest{
		Subject:     job.Subject,
		Body:        job.Body,
		MessageType: job.MessageType,
	})
	switch {
	case errors.Is(err, appErrors.ErrBroadcastInProgress):
		return err
	case err != nil && result == nil && ctx.Err() != nil:
		log.Warn("queued broadcast not started, shutting down", zap.Error(err))
		return err
	case err != nil && result != nil:
		log.Error("queued broadcast stopped",
			zap.Int("message_id", result.MessageID),
			zap.Int("success", result.SuccessCount),
			zap.Int("failed", result.FailCount),
			zap.Error(err),
		)
		return nil
	case err != nil:
		log.Error("queued broadcast failed", zap.Error(err))
		return nil
	}
	log.Info("queued broadcast done",
		zap.Int("message_id", result.MessageID),
		zap.String("status", result.Status),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailCount),
	)
	return nil
}
