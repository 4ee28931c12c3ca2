package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletnotify/internal/model"
)

type dispatchCall struct {
	WalletIDs []string
	Payload   model.NotificationPayload
}

type spyNotifier struct {
	err   error
	mu    sync.Mutex
	calls []dispatchCall
}

func (s *spyNotifier) Dispatch(ctx context.Context, walletIDs []string, payload model.NotificationPayload) (*model.DispatchReport, error) {
	s.mu.Lock()
	s.calls = append(s.calls, dispatchCall{WalletIDs: walletIDs, Payload: payload})
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &model.DispatchReport{Identities: walletIDs, Results: []model.DeliveryResult{}}, nil
}

type recordingSink struct {
	err    error
	events []*model.WebhookEvent
}

func (r *recordingSink) Save(ctx context.Context, e *model.WebhookEvent) error {
	r.events = append(r.events, e)
	return r.err
}

type memoryDeduper struct {
	seen      map[string]bool
	err       error
	forgotten []string
}

func (m *memoryDeduper) MarkSeen(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memoryDeduper) Forget(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(m.seen, id)
	m.forgotten = append(m.forgotten, id)
	return nil
}

func event(eventType, data string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:          "evt-1",
		EventType:   eventType,
		ResourceID:  "res-1",
		WorkspaceID: "ws-1",
		CreatedAt:   1700000000000,
		Data:        json.RawMessage(data),
	}
}

const txData = `{"id":"1234567890abcdef","status":"COMPLETED","txHash":"0xabc",
	"source":{"type":"END_USER_WALLET","walletId":"w1"},
	"destination":{"type":"END_USER_WALLET","walletId":"w2"}}`

func TestProcess_Transaction(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{})

	out, err := p.Process(context.Background(), event("transaction.status.updated", txData))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDispatched, out.Result)
	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, []string{"w1", "w2"}, call.WalletIDs)
	assert.Equal(t, "Transaction Update", call.Payload.Title)
	assert.Equal(t, "Transaction 12345678... is now in COMPLETED status", call.Payload.Body)
	assert.Equal(t, "transaction.status.updated", call.Payload.Data["type"])
	assert.Equal(t, "0xabc", call.Payload.Data["txHash"])
	assert.Nil(t, call.Payload.Data["webhookData"])
}

func TestProcess_TransactionIncludesWebhookData(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{IncludeWebhookData: true})

	ev := event("transaction.created", txData)
	_, err := p.Process(context.Background(), ev)
	require.NoError(t, err)

	assert.Same(t, ev, notifier.calls[0].Payload.Data["webhookData"])
}

func TestProcess_TransactionWithoutParticipants(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{})

	out, err := p.Process(context.Background(), event("transaction.created",
		`{"id":"tx","status":"COMPLETED","source":{"type":"VAULT_ACCOUNT","id":"0"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoParticipants, out.Result)
	assert.Empty(t, notifier.calls, "dispatcher must not be called")
}

func TestProcess_StatusPolicy(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{Notifiable: NewStatusPolicy([]string{"FAILED"})})

	out, err := p.Process(context.Background(), event("transaction.status.updated", txData))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotNotifiable, out.Result)
	assert.Empty(t, notifier.calls)
}

func TestProcess_Wallet(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{})

	out, err := p.Process(context.Background(), event("embedded_wallet.balance.updated",
		`{"walletId":"w3","accountId":"0","assetId":"ETH","total":"1.5"}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDispatched, out.Result)
	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, []string{"w3"}, call.WalletIDs)
	assert.Equal(t, "Wallet Update", call.Payload.Title)
	assert.Equal(t, "Wallet w3 received embedded_wallet.balance.updated event", call.Payload.Body)
	assert.Equal(t, "evt-1", call.Payload.Data["id"])
	assert.Equal(t, "ws-1", call.Payload.Data["workspaceId"])
}

func TestProcess_UnrecognizedDispatchesNothing(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{})

	out, err := p.Process(context.Background(), event("vault_account.created", `{"id":"1"}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeIgnored, out.Result)
	assert.Equal(t, model.CategoryUnrecognized, out.Category)
	assert.Empty(t, notifier.calls)
}

func TestProcess_DispatchErrorIsReturned(t *testing.T) {
	notifier := &spyNotifier{err: errors.New("db down")}
	deduper := &memoryDeduper{}
	p := NewProcessor(notifier, ProcessorConfig{Deduper: deduper})

	_, err := p.Process(context.Background(), event("transaction.created", txData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, []string{"evt-1"}, deduper.forgotten, "failed event should be retryable")
}

type panickingNotifier struct{}

func (panickingNotifier) Dispatch(context.Context, []string, model.NotificationPayload) (*model.DispatchReport, error) {
	panic("sender exploded")
}

func TestProcess_PanicReleasesDedupeMark(t *testing.T) {
	deduper := &memoryDeduper{}
	p := NewProcessor(panickingNotifier{}, ProcessorConfig{Deduper: deduper})

	assert.Panics(t, func() {
		_, _ = p.Process(context.Background(), event("transaction.created", txData))
	})
	assert.Equal(t, []string{"evt-1"}, deduper.forgotten)

	// The redelivery is processed, not dropped as a duplicate.
	notifier := &spyNotifier{}
	p = NewProcessor(notifier, ProcessorConfig{Deduper: deduper})
	out, err := p.Process(context.Background(), event("transaction.created", txData))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, out.Result)
	assert.Len(t, notifier.calls, 1)
}

func TestProcess_CancelledContextStillReleasesMark(t *testing.T) {
	deduper := &memoryDeduper{}
	p := NewProcessor(&spyNotifier{err: context.Canceled}, ProcessorConfig{Deduper: deduper})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, event("transaction.created", txData))
	require.Error(t, err)
	assert.Equal(t, []string{"evt-1"}, deduper.forgotten)
}

func TestProcess_MalformedDataIsAnError(t *testing.T) {
	p := NewProcessor(&spyNotifier{}, ProcessorConfig{})

	_, err := p.Process(context.Background(), event("transaction.created", `"just a string"`))
	assert.Error(t, err)
}

func TestProcess_AuditFailureIsNotFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{Audit: sink})

	out, err := p.Process(context.Background(), event("transaction.created", txData))
	require.NoError(t, err)

	assert.Len(t, sink.events, 1)
	assert.Equal(t, OutcomeDispatched, out.Result)
}

func TestProcess_DuplicateEventDropped(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{Deduper: &memoryDeduper{}})

	_, err := p.Process(context.Background(), event("transaction.created", txData))
	require.NoError(t, err)
	out, err := p.Process(context.Background(), event("transaction.created", txData))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, out.Result)
	assert.Len(t, notifier.calls, 1)
}

func TestProcess_DeduperErrorDoesNotBlock(t *testing.T) {
	notifier := &spyNotifier{}
	p := NewProcessor(notifier, ProcessorConfig{Deduper: &memoryDeduper{err: errors.New("redis down")}})

	out, err := p.Process(context.Background(), event("transaction.created", txData))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, out.Result)
}

func TestTransactionPayload_ShortID(t *testing.T) {
	payload := TransactionPayload(event("transaction.created", `{}`), &model.Transaction{ID: "abc", Status: "SUBMITTED"}, false)
	assert.Equal(t, "Transaction abc... is now in SUBMITTED status", payload.Body)
}
