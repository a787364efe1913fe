package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/lock"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/service"
)

type dispatchFixture struct {
	subs       *MockSubscriberRepo
	ledger     *MockMessageRepo
	deliveries *MockDeliveryRepo
	transport  *MockTransport
	dispatcher *service.Dispatcher
}

func fastConfig() service.DispatchConfig {
	cfg := service.DefaultDispatchConfig()
	cfg.ItemDelay = 0
	cfg.BatchDelay = 0
	cfg.RetryBackoff = 0
	cfg.UnsubscribeBaseURL = "https://ngo.example.org/"
	cfg.IncludeErrorDetail = true
	return cfg
}

func newDispatchFixture(t *testing.T, recipients int, cfg service.DispatchConfig) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		subs:       &MockSubscriberRepo{},
		ledger:     &MockMessageRepo{},
		deliveries: &MockDeliveryRepo{},
		transport:  &MockTransport{Fail: map[string]error{}},
	}
	for i := 1; i <= recipients; i++ {
		f.subs.add(fmt.Sprintf("user%d@example.org", i), true)
	}
	f.dispatcher = service.NewDispatcher(f.subs, f.ledger, f.deliveries, f.transport, cfg, zap.NewNop())
	return f
}

func TestBroadcastSevenRecipientsThirdFails(t *testing.T) {
	f := newDispatchFixture(t, 7, fastConfig())
	recipients, _ := f.subs.ListActive(context.Background())
	third := recipients[2].Email
	f.transport.Fail[third] = errMailbox

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 6, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)
	assert.Equal(t, []string{third}, result.FailedEmails)
	assert.True(t, result.Success)
	assert.Equal(t, service.BroadcastPartial, result.Status)
	assert.Equal(t, map[string]int{"smtp_550": 1}, result.ErrorBreakdown)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "mailbox unavailable", result.Failures[0].Error)

	msg, err := f.ledger.GetByID(context.Background(), result.MessageID)
	require.NoError(t, err)
	assert.Equal(t, 7, msg.TotalRecipients)
	assert.Equal(t, 6, msg.SuccessfulSends)
	assert.Equal(t, 1, msg.FailedSends)
	assert.Equal(t, model.MessageStatusCompleted, msg.Status)
	assert.Equal(t, "newsletter", msg.MessageType)

	// one checkpoint per batch of five
	assert.Equal(t, []countUpdate{{4, 1}, {6, 1}}, f.ledger.checkpoints)

	stats, _ := f.deliveries.StatsByMessage(context.Background(), result.MessageID)
	assert.Equal(t, map[string]int{"total": 7, "sent": 6, "failed": 1}, stats)
}

func TestBroadcastSendsInSnapshotOrder(t *testing.T) {
	f := newDispatchFixture(t, 6, fastConfig())
	recipients, _ := f.subs.ListActive(context.Background())

	_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)

	want := make([]string, len(recipients))
	for i, r := range recipients {
		want[i] = r.Email
	}
	assert.Equal(t, want, f.transport.sentTo())
}

func TestBroadcastRendersUnsubscribeLink(t *testing.T) {
	f := newDispatchFixture(t, 1, fastConfig())
	recipients, _ := f.subs.ListActive(context.Background())
	link := "https://ngo.example.org/newsletter/unsubscribe/" + recipients[0].UnsubscribeToken

	_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "News", Body: "Line one\nLine <two>"})
	require.NoError(t, err)

	require.Len(t, f.transport.sent, 1)
	msg := f.transport.sent[0]
	assert.Equal(t, "News", msg.Subject)
	assert.Contains(t, msg.HTML, `href="`+link+`"`)
	assert.Contains(t, msg.HTML, "Line one<br>\nLine &lt;two&gt;")
	assert.Contains(t, msg.Text, "Unsubscribe: "+link)
	assert.Equal(t, "<"+link+">", msg.Headers["List-Unsubscribe"])
}

func TestBroadcastNoRecipientsCreatesNoLedgerRow(t *testing.T) {
	f := newDispatchFixture(t, 0, fastConfig())
	f.subs.add("gone@example.org", false)

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, appErrors.ErrNoRecipients)
	assert.Equal(t, 0, f.ledger.count())
}

func TestBroadcastValidationBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		wantErr bool
	}{
		{"subject 200 accepted", strings.Repeat("a", 200), "Body", false},
		{"subject 201 rejected", strings.Repeat("a", 201), "Body", true},
		{"body 10000 accepted", "Hi", strings.Repeat("b", 10000), false},
		{"body 10001 rejected", "Hi", strings.Repeat("b", 10001), true},
		{"multibyte subject counts characters", strings.Repeat("é", 200), "Body", false},
		{"empty subject", "   ", "Body", true},
		{"empty body", "Hi", "\n\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t, 1, fastConfig())
			_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: tt.subject, Body: tt.body})
			if tt.wantErr {
				assert.True(t, appErrors.IsValidation(err), "expected validation error, got %v", err)
				assert.Equal(t, 0, f.ledger.count())
				assert.Empty(t, f.transport.sent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, f.ledger.count())
		})
	}
}

func TestBroadcastMessageTypeFitsLedgerColumn(t *testing.T) {
	f := newDispatchFixture(t, 1, fastConfig())

	_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{
		Subject: "Hi", Body: "Body", MessageType: strings.Repeat("t", 51),
	})
	assert.True(t, appErrors.IsValidation(err), "expected validation error, got %v", err)
	assert.Equal(t, 0, f.ledger.count())

	_, err = f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{
		Subject: "Hi", Body: "Body", MessageType: strings.Repeat("t", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.count())
}

func TestBroadcastCountsAlwaysReconcile(t *testing.T) {
	for n := 1; n <= 12; n++ {
		f := newDispatchFixture(t, n, fastConfig())
		recipients, _ := f.subs.ListActive(context.Background())
		for i, r := range recipients {
			if i%3 == 0 {
				f.transport.Fail[r.Email] = errBoom
			}
		}

		result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
		require.NoError(t, err)
		assert.Equal(t, n, result.Total)
		assert.Equal(t, result.Total, result.SuccessCount+result.FailCount, "n=%d", n)
		assert.Len(t, result.FailedEmails, result.FailCount)
	}
}

func TestBroadcastAllFailIsFailedStatus(t *testing.T) {
	f := newDispatchFixture(t, 3, fastConfig())
	recipients, _ := f.subs.ListActive(context.Background())
	for _, r := range recipients {
		f.transport.Fail[r.Email] = errBoom
	}

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, service.BroadcastFailed, result.Status)
	assert.Equal(t, map[string]int{"send_failed": 3}, result.ErrorBreakdown)

	msg, _ := f.ledger.GetByID(context.Background(), result.MessageID)
	assert.Equal(t, model.MessageStatusFailed, msg.Status)
}

func TestBroadcastOmitsErrorDetailWhenDisabled(t *testing.T) {
	cfg := fastConfig()
	cfg.IncludeErrorDetail = false
	f := newDispatchFixture(t, 2, cfg)
	recipients, _ := f.subs.ListActive(context.Background())
	f.transport.Fail[recipients[0].Email] = errMailbox

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, []string{recipients[0].Email}, result.FailedEmails)
	assert.Empty(t, result.Failures)
}

func TestBroadcastVerifyFailureDoesNotAbort(t *testing.T) {
	f := newDispatchFixture(t, 2, fastConfig())
	f.transport.VerifyErr = errBoom

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
}

func TestBroadcastLedgerCreateFailure(t *testing.T) {
	f := newDispatchFixture(t, 2, fastConfig())
	f.ledger.CreateErr = errBoom

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	assert.Nil(t, result)
	assert.True(t, appErrors.IsLedger(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.transport.sent)
}

func TestBroadcastLedgerFinalizeFailure(t *testing.T) {
	f := newDispatchFixture(t, 2, fastConfig())
	f.ledger.FinalizeErr = errBoom

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NotNil(t, result)
	assert.True(t, appErrors.IsLedger(err))
	assert.Equal(t, 2, result.SuccessCount)
}

func TestBroadcastCancellationFlushesPartialCounts(t *testing.T) {
	f := newDispatchFixture(t, 7, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.transport.OnSend = func(call int) {
		if call == 3 {
			cancel()
		}
	}

	result, err := f.dispatcher.Broadcast(ctx, service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.SuccessCount+result.FailCount)
	assert.Less(t, result.SuccessCount+result.FailCount, result.Total)

	msg, _ := f.ledger.GetByID(context.Background(), result.MessageID)
	assert.Equal(t, model.MessageStatusCancelled, msg.Status)
	assert.Equal(t, result.SuccessCount, msg.SuccessfulSends)
	assert.Equal(t, result.FailCount, msg.FailedSends)
}

func TestBroadcastRetriesTemporaryFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	f := newDispatchFixture(t, 1, cfg)
	flaky := &flakyTransport{MockTransport: MockTransport{Fail: map[string]error{}}, n: 2}
	f.dispatcher.Transport = flaky

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, 3, f.deliveries.deliveries[0].Attempts)
}

func TestBroadcastDoesNotRetryByDefault(t *testing.T) {
	f := newDispatchFixture(t, 1, fastConfig())
	flaky := &flakyTransport{MockTransport: MockTransport{Fail: map[string]error{}}, n: 1}
	f.dispatcher.Transport = flaky

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailCount)
	assert.Equal(t, 1, flaky.calls)
}

func TestBroadcastDoesNotRetryPermanentFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 3
	f := newDispatchFixture(t, 1, cfg)
	recipients, _ := f.subs.ListActive(context.Background())
	f.transport.Fail[recipients[0].Email] = errMailbox

	result, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailCount)
	assert.Equal(t, 1, f.transport.calls)
}

func TestBroadcastHonoursDelays(t *testing.T) {
	cfg := fastConfig()
	cfg.ItemDelay = 10 * time.Millisecond
	cfg.BatchDelay = 50 * time.Millisecond
	f := newDispatchFixture(t, 7, cfg)

	start := time.Now()
	_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	require.NoError(t, err)

	// 4 item delays in the first batch, 1 in the second, 1 batch delay
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return nil, lock.ErrHeld
}

func TestBroadcastRejectedWhileLockHeld(t *testing.T) {
	f := newDispatchFixture(t, 2, fastConfig())
	f.dispatcher.Locker = heldLocker{}

	_, err := f.dispatcher.Broadcast(context.Background(), service.BroadcastRequest{Subject: "Hi", Body: "Body"})
	assert.True(t, errors.Is(err, appErrors.ErrBroadcastInProgress))
	assert.Equal(t, 0, f.ledger.count())
}
