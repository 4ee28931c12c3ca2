package service

import (
	"context"
	"sync"

	"walletnotify/internal/model"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================

type mockDeviceTokenRepository struct {
	upsertFn         func(ctx context.Context, t *model.DeviceToken) (*model.DeviceToken, error)
	getByWalletIDsFn func(ctx context.Context, walletIDs []string, platforms ...model.Platform) ([]model.DeviceToken, error)

	mu           sync.Mutex
	upsertCalls  []*model.DeviceToken
	lookupCalls  [][]string
	lookupFilter [][]model.Platform
}

func (m *mockDeviceTokenRepository) Upsert(ctx context.Context, t *model.DeviceToken) (*model.DeviceToken, error) {
	m.mu.Lock()
	m.upsertCalls = append(m.upsertCalls, t)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, t)
	}
	stored := *t
	return &stored, nil
}

func (m *mockDeviceTokenRepository) GetByToken(ctx context.Context, token string) (*model.DeviceToken, error) {
	return nil, nil
}

func (m *mockDeviceTokenRepository) GetByWalletIDs(ctx context.Context, walletIDs []string, platforms ...model.Platform) ([]model.DeviceToken, error) {
	m.mu.Lock()
	m.lookupCalls = append(m.lookupCalls, walletIDs)
	m.lookupFilter = append(m.lookupFilter, platforms)
	m.mu.Unlock()
	if m.getByWalletIDsFn != nil {
		return m.getByWalletIDsFn(ctx, walletIDs, platforms...)
	}
	return nil, nil
}

type mockSubscriptionRepository struct {
	upsertFn         func(ctx context.Context, s *model.WebPushSubscription) (*model.WebPushSubscription, error)
	getByWalletIDsFn func(ctx context.Context, walletIDs []string) ([]model.WebPushSubscription, error)

	mu          sync.Mutex
	upsertCalls []*model.WebPushSubscription
	lookupCalls [][]string
}

func (m *mockSubscriptionRepository) Upsert(ctx context.Context, s *model.WebPushSubscription) (*model.WebPushSubscription, error) {
	m.mu.Lock()
	m.upsertCalls = append(m.upsertCalls, s)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	stored := *s
	return &stored, nil
}

func (m *mockSubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.WebPushSubscription, error) {
	return nil, nil
}

func (m *mockSubscriptionRepository) GetByWalletIDs(ctx context.Context, walletIDs []string) ([]model.WebPushSubscription, error) {
	m.mu.Lock()
	m.lookupCalls = append(m.lookupCalls, walletIDs)
	m.mu.Unlock()
	if m.getByWalletIDsFn != nil {
		return m.getByWalletIDsFn(ctx, walletIDs)
	}
	return nil, nil
}

// =============================================================================
// SPY SENDERS
// =============================================================================

type tokenSendCall struct {
	Token    string
	Platform model.Platform
	Data     map[string]string
}

type spyTokenSender struct {
	sendFn func(ctx context.Context, token string) error

	mu    sync.Mutex
	calls []tokenSendCall
}

func (s *spyTokenSender) SendData(ctx context.Context, token string, platform model.Platform, data map[string]string) error {
	s.mu.Lock()
	s.calls = append(s.calls, tokenSendCall{Token: token, Platform: platform, Data: data})
	s.mu.Unlock()
	if s.sendFn != nil {
		return s.sendFn(ctx, token)
	}
	return nil
}

func (s *spyTokenSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type subscriptionSendCall struct {
	Endpoint string
	Body     []byte
}

type spySubscriptionSender struct {
	sendFn func(ctx context.Context, sub model.WebPushSubscription) error

	mu    sync.Mutex
	calls []subscriptionSendCall
}

func (s *spySubscriptionSender) Send(ctx context.Context, sub model.WebPushSubscription, body []byte) error {
	s.mu.Lock()
	s.calls = append(s.calls, subscriptionSendCall{Endpoint: sub.Endpoint, Body: body})
	s.mu.Unlock()
	if s.sendFn != nil {
		return s.sendFn(ctx, sub)
	}
	return nil
}

func (s *spySubscriptionSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
