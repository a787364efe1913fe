package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue maps topics to durable RabbitMQ queues on the default exchange.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
	log  *zap.Logger

	tags      []string
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

func DialAMQP(url string, log *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// One unacked job at a time per consumer: broadcasts are long.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch, log: log, done: make(chan struct{})}, nil
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.declare(topic); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return q.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

// Subscribe consumes topic until ctx is done or the queue is closed. Each
// handler runs on ctx. A delivery is acked once its handler returns nil. A
// failed delivery is requeued once and dropped on its second failure, except
// when ctx is done, in which case it is always requeued for another consumer.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	tag := "ngo-" + uuid.NewString()

	q.mu.Lock()
	if _, err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	msgs, err := q.ch.Consume(
		topic,
		tag,
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err == nil {
		q.tags = append(q.tags, tag)
	}
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	q.wg.Add(2)
	go func() {
		defer q.wg.Done()
		select {
		case <-ctx.Done():
			q.cancel(tag)
		case <-q.done:
		}
	}()
	go func() {
		defer q.wg.Done()
		for d := range msgs {
			q.handle(ctx, topic, d, handler)
		}
		q.log.Info("consumer stopped", zap.String("topic", topic))
	}()
	return nil
}

func (q *AMQPQueue) handle(ctx context.Context, topic string, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.Body)
	if err == nil {
		if err := d.Ack(false); err != nil {
			q.log.Error("ack failed", zap.String("topic", topic), zap.Error(err))
		}
		return
	}
	requeue := !d.Redelivered || ctx.Err() != nil
	q.log.Warn("job failed",
		zap.String("topic", topic),
		zap.Bool("redelivered", d.Redelivered),
		zap.Bool("requeue", requeue),
		zap.Error(err),
	)
	if err := d.Nack(false, requeue); err != nil {
		q.log.Error("nack failed", zap.String("topic", topic), zap.Error(err))
	}
}

// cancel stops the broker from delivering to tag. Deliveries already
// buffered still reach the handler loop, which then exits.
func (q *AMQPQueue) cancel(tag string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.tags, tag)
	if i < 0 {
		return
	}
	q.tags = slices.Delete(q.tags, i, i+1)
	if err := q.ch.Cancel(tag, false); err != nil {
		q.log.Warn("cancel consumer", zap.String("tag", tag), zap.Error(err))
	}
}

// Close cancels every consumer, waits for running handlers to ack or nack,
// then closes the channel and connection.
func (q *AMQPQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	q.mu.Lock()
	tags := slices.Clone(q.tags)
	q.mu.Unlock()
	for _, tag := range tags {
		q.cancel(tag)
	}
	q.wg.Wait()

	q.ch.Close()
	return q.conn.Close()
}
