// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/adapter"
	"ridehail-backoffice/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
// The conditional updates mirror the storage CAS semantics.
type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentTransaction

	saveErr error // simulate save failures

	// completeHook runs inside CompleteIfPending before the status check,
	// letting tests interleave a concurrent winner.
	completeHook func()
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.PaymentTransaction)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentTransaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindCompletedByGatewayTxID(ctx context.Context, tx repository.Tx, gatewayTxID string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Status == model.PaymentStatusCompleted && p.GatewayTxID != nil && *p.GatewayTxID == gatewayTxID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, u repository.CompletionUpdate) (bool, error) {
	if m.completeHook != nil {
		m.completeHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Enforce the one-completed-claim-per-gateway-id constraint the partial
	// unique index provides in Postgres.
	for _, p := range m.store {
		if p.ID != id && p.Status == model.PaymentStatusCompleted && p.GatewayTxID != nil && *p.GatewayTxID == u.GatewayTxID {
			return false, domain.ErrConflict
		}
	}

	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusCompleted
	p.SubscriptionID = &u.SubscriptionID
	gid := u.GatewayTxID
	p.GatewayTxID = &gid
	p.GatewayRef = u.GatewayRef
	at := u.CompletedAt
	p.CompletedAt = &at
	p.RawResponse = u.RawResponse
	return true, nil
}

func (m *memPaymentRepo) FailIfPending(ctx context.Context, tx repository.Tx, id string, u repository.FailureUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	if u.GatewayTxID != nil {
		p.GatewayTxID = u.GatewayTxID
	}
	p.RawResponse = u.RawResponse
	msg := u.ErrorMessage
	p.ErrorMessage = &msg
	at := u.FailedAt
	p.CompletedAt = &at
	return true, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.GatewayTxID != nil && p.InitiatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memSubRepo struct {
	mu      sync.RWMutex
	subs    map[string]*model.Subscription
	saveErr error
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: make(map[string]*model.Subscription)}
}

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *memSubRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

type memUserRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.User
	updates int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) UpdateSubscriptionFields(ctx context.Context, tx repository.Tx, userID string, role model.Role, status string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.SubscriptionStatus = &status
	u.SubscriptionStartDate = &start
	u.SubscriptionEndDate = &end
	m.updates++
	return nil
}

type memPriceRepo struct {
	mu     sync.RWMutex
	prices map[string]*model.PlanPrice
}

func newMemPriceRepo() *memPriceRepo {
	return &memPriceRepo{prices: make(map[string]*model.PlanPrice)}
}

func (m *memPriceRepo) put(p *model.PlanPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.prices[p.Tag] = &cp
}

func (m *memPriceRepo) FindByTag(ctx context.Context, tx repository.Tx, tag string) (*model.PlanPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[tag]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// mockGateway satisfies adapter.PaymentGateway with per-test hooks.
type mockGateway struct {
	lookupFunc func(ctx context.Context, transactionID string) (*adapter.LookupResult, error)
	lookups    int
}

func (g *mockGateway) Name() string { return "mmg" }

func (g *mockGateway) SessionToken(ctx context.Context) (string, error) { return "tok", nil }

func (g *mockGateway) LookupTransaction(ctx context.Context, transactionID string) (*adapter.LookupResult, error) {
	g.lookups++
	if g.lookupFunc != nil {
		return g.lookupFunc(ctx, transactionID)
	}
	return &adapter.LookupResult{
		TransactionID: transactionID,
		Amount:        decimal.NewFromInt(5000),
		Currency:      "GYD",
		Status:        "successful",
	}, nil
}

func (g *mockGateway) CheckoutURL(payload adapter.CheckoutPayload) (string, error) {
	return "https://gateway.test/checkout?token=abc", nil
}

// mockTxManager runs the function directly; the in-memory repos ignore the
// handle. Rollback is simulated by the repos' own state checks.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type captureNotifier struct {
	mu    sync.Mutex
	sends [][]string
}

func (n *captureNotifier) Send(ctx context.Context, userIDs []string, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, userIDs)
	return nil
}
