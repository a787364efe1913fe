package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/mail"
	"github.com/unclebandit/ngo-backoffice/internal/model"
)

// --- Mock Repositories ---

type MockSubscriberRepo struct {
	mu     sync.Mutex
	nextID int
	rows   []*model.Subscriber
}

func (m *MockSubscriberRepo) add(email string, active bool) *model.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &model.Subscriber{
		ID:               m.nextID,
		Email:            email,
		Active:           active,
		UnsubscribeToken: fmt.Sprintf("tok-%d", m.nextID),
		SubscribedAt:     time.Now(),
	}
	m.rows = append(m.rows, s)
	return s
}

func (m *MockSubscriberRepo) ListActive(ctx context.Context) ([]model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscriber{}
	for _, s := range m.rows {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MockSubscriberRepo) find(match func(*model.Subscriber) bool) *model.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if match(s) {
			c := *s
			return &c
		}
	}
	return nil
}

func (m *MockSubscriberRepo) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	return m.find(func(s *model.Subscriber) bool { return s.Email == email }), nil
}

func (m *MockSubscriberRepo) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	return m.find(func(s *model.Subscriber) bool { return s.UnsubscribeToken == token }), nil
}

func (m *MockSubscriberRepo) Create(ctx context.Context, s *model.Subscriber) error {
	if existing, _ := m.GetByEmail(ctx, s.Email); existing != nil {
		return appErrors.ErrAlreadySubscribed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	s.Active = true
	s.SubscribedAt = time.Now()
	c := *s
	m.rows = append(m.rows, &c)
	return nil
}

func (m *MockSubscriberRepo) Reactivate(ctx context.Context, id int, token string) (*model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id && !s.Active {
			s.Active = true
			s.UnsubscribeToken = token
			s.SubscribedAt = time.Now()
			s.UnsubscribedAt = nil
			c := *s
			return &c, nil
		}
	}
	return nil, appErrors.ErrAlreadySubscribed
}

func (m *MockSubscriberRepo) Deactivate(ctx context.Context, token string) (*model.Subscriber, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UnsubscribeToken == token && s.Active {
			now := time.Now()
			s.Active = false
			s.UnsubscribedAt = &now
			c := *s
			return &c, true, nil
		}
	}
	return nil, false, nil
}

func (m *MockSubscriberRepo) Delete(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.rows {
		if s.Email == email {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSubscriberRepo) Stats(ctx context.Context) (model.SubscriberStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := model.SubscriberStats{Total: len(m.rows)}
	for _, s := range m.rows {
		if s.Active {
			st.Active++
		} else {
			st.Unsubscribed++
		}
	}
	return st, nil
}

type countUpdate struct {
	Success, Failed int
}

type MockMessageRepo struct {
	mu          sync.Mutex
	messages    []*model.BroadcastMessage
	checkpoints []countUpdate
	CreateErr   error
	FinalizeErr error
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *model.BroadcastMessage) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = len(m.messages) + 1
	msg.Status = model.MessageStatusSending
	msg.SentAt = time.Now()
	c := *msg
	m.messages = append(m.messages, &c)
	return nil
}

func (m *MockMessageRepo) UpdateCounts(ctx context.Context, id, success, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, countUpdate{success, failed})
	msg := m.messages[id-1]
	msg.SuccessfulSends, msg.FailedSends = success, failed
	return nil
}

func (m *MockMessageRepo) Finalize(ctx context.Context, id, success, failed int, status string) error {
	if m.FinalizeErr != nil {
		return m.FinalizeErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.messages[id-1]
	now := time.Now()
	msg.SuccessfulSends, msg.FailedSends, msg.Status, msg.CompletedAt = success, failed, status, &now
	return nil
}

func (m *MockMessageRepo) List(ctx context.Context, offset, limit int) ([]model.BroadcastMessage, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.BroadcastMessage{}
	for i := len(m.messages) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.messages[i])
	}
	return out, len(m.messages), nil
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id int) (*model.BroadcastMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > len(m.messages) {
		return nil, appErrors.NewNotFound("message", id)
	}
	c := *m.messages[id-1]
	return &c, nil
}

func (m *MockMessageRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type MockDeliveryRepo struct {
	mu         sync.Mutex
	deliveries []model.Delivery
}

func (m *MockDeliveryRepo) Record(ctx context.Context, d *model.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = len(m.deliveries) + 1
	m.deliveries = append(m.deliveries, *d)
	return nil
}

func (m *MockDeliveryRepo) ListByMessage(ctx context.Context, messageID int) ([]model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Delivery{}
	for _, d := range m.deliveries {
		if d.MessageID == messageID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockDeliveryRepo) StatsByMessage(ctx context.Context, messageID int) (map[string]int, error) {
	list, _ := m.ListByMessage(ctx, messageID)
	stats := map[string]int{"total": 0, model.DeliveryStatusSent: 0, model.DeliveryStatusFailed: 0}
	for _, d := range list {
		stats[d.Status]++
		stats["total"]++
	}
	return stats, nil
}

// --- Mock Transport ---

// MockTransport records every message and fails the addresses in Fail.
type MockTransport struct {
	mu        sync.Mutex
	sent      []mail.Message
	calls     int
	Fail      map[string]error
	OnSend    func(call int)
	VerifyErr error
}

func (m *MockTransport) Send(ctx context.Context, msg mail.Message) (mail.Receipt, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.OnSend != nil {
		m.OnSend(call)
	}
	if err := m.Fail[msg.To]; err != nil {
		return mail.Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return mail.Receipt{MessageID: fmt.Sprintf("<%d@test>", call)}, nil
}

func (m *MockTransport) Verify(ctx context.Context) error { return m.VerifyErr }

func (m *MockTransport) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.To
	}
	return out
}

var errMailbox = &mail.TransportError{Code: "smtp_550", Message: "mailbox unavailable"}

// flakyTransport fails the first n calls with a temporary error.
type flakyTransport struct {
	MockTransport
	n int
}

func (f *flakyTransport) Send(ctx context.Context, msg mail.Message) (mail.Receipt, error) {
	f.mu.Lock()
	if f.n > 0 {
		f.n--
		f.calls++
		f.mu.Unlock()
		return mail.Receipt{}, &mail.TransportError{Code: "smtp_451", Message: "try again later", Temporary: true}
	}
	f.mu.Unlock()
	return f.MockTransport.Send(ctx, msg)
}

var errBoom = errors.New("boom")
