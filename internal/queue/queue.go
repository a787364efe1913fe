package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one payload. A non-nil error asks the queue to retry.
type Handler func(ctx context.Context, payload []byte) error

// Queue interface. Handlers run on a context derived from the one passed to
// Subscribe, so cancelling it stops in-flight work. Close waits for running
// handlers to return.
type Queue interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

type subscription struct {
	ctx     context.Context
	handler Handler
}

// InMemoryQueue delivers to in-process subscribers with retry and linear backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]subscription
	wg       sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
	log        *zap.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]subscription),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    []byte
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to every subscriber of topic, each on its own goroutine.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, sub := range handlers {
		job := JobPayload{
			Topic:      topic,
			Payload:    payload,
			MaxRetries: q.MaxRetries,
		}
		q.wg.Add(1)
		go q.processJob(sub.ctx, sub.handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, job JobPayload) {
	defer q.wg.Done()
	for job.RetryCount <= job.MaxRetries {
		err := handler(ctx, job.Payload)
		if err == nil {
			q.log.Debug("job processed", zap.String("topic", job.Topic))
			return
		}

		job.RetryCount++
		q.log.Warn("job failed",
			zap.String("topic", job.Topic),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)

		if job.RetryCount > job.MaxRetries {
			q.log.Error("job permanently failed", zap.String("topic", job.Topic), zap.Int("attempts", job.RetryCount))
			return
		}
		if ctx.Err() != nil {
			q.log.Warn("job abandoned, subscriber stopped", zap.String("topic", job.Topic))
			return
		}

		t := time.NewTimer(time.Duration(job.RetryCount) * q.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			q.log.Warn("job abandoned, subscriber stopped", zap.String("topic", job.Topic))
			return
		case <-t.C:
		}
	}
}

// Subscribe adds a handler for a topic. Jobs published to it run on ctx.
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], subscription{ctx: ctx, handler: handler})
	return nil
}

// Wait blocks until every published job has finished, including retries.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

func (q *InMemoryQueue) Close() error {
	q.Wait()
	return nil
}
