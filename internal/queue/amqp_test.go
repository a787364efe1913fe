package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type ackCall struct {
	ack, requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.calls = append(f.calls, ackCall{ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestAMQPDeliveryAck(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	failing := func(ctx context.Context, payload []byte) error { return errors.New("busy") }

	tests := []struct {
		name        string
		ctx         context.Context
		redelivered bool
		handler     Handler
		want        ackCall
	}{
		{"success acks", context.Background(), false, func(ctx context.Context, payload []byte) error { return nil }, ackCall{ack: true}},
		{"success after shutdown still acks", cancelled, true, func(ctx context.Context, payload []byte) error { return nil }, ackCall{ack: true}},
		{"first failure requeues", context.Background(), false, failing, ackCall{requeue: true}},
		{"second failure drops", context.Background(), true, failing, ackCall{requeue: false}},
		{"failure during shutdown requeues", cancelled, true, failing, ackCall{requeue: true}},
	}

	q := &AMQPQueue{log: zap.NewNop()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			q.handle(tt.ctx, "jobs", amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Redelivered: tt.redelivered}, tt.handler)
			assert.Equal(t, []ackCall{tt.want}, ack.calls)
		})
	}
}
