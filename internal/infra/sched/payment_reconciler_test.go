// File: internal/infra/sched/payment_reconciler_test.go
package sched

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/adapter"
	"ridehail-backoffice/internal/domain/ports/repository"
	"ridehail-backoffice/internal/usecase"
)

type stubPaymentRepo struct {
	repository.PaymentTransactionRepository
	pending []*model.PaymentTransaction
}

func (s *stubPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	return s.pending, nil
}

type stubGateway struct {
	lookupFunc func(ctx context.Context, transactionID string) (*adapter.LookupResult, error)
}

func (s *stubGateway) Name() string { return "mmg" }

func (s *stubGateway) SessionToken(ctx context.Context) (string, error) { return "tok", nil }

func (s *stubGateway) CheckoutURL(adapter.CheckoutPayload) (string, error) { return "", nil }
func (s *stubGateway) LookupTransaction(ctx context.Context, transactionID string) (*adapter.LookupResult, error) {
	return s.lookupFunc(ctx, transactionID)
}

type stubPaymentUC struct {
	mu     sync.Mutex
	inputs []usecase.ReconcileInput
}

func (s *stubPaymentUC) Initiate(ctx context.Context, userID string, amount int64, currency, description string) (*model.PaymentTransaction, string, error) {
	panic("not used")
}

func (s *stubPaymentUC) Confirm(ctx context.Context, userID, gatewayTxID, planTag string) (*usecase.ReconcileOutcome, error) {
	panic("not used")
}

func (s *stubPaymentUC) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	panic("not used")
}

func (s *stubPaymentUC) Reconcile(ctx context.Context, in usecase.ReconcileInput) (*usecase.ReconcileOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	status := model.PaymentStatusCompleted
	if in.ResultCode != "0" {
		status = model.PaymentStatusFailed
	}
	return &usecase.ReconcileOutcome{
		Payment: &model.PaymentTransaction{ID: in.MerchantTxID, Status: status},
	}, nil
}

func stalePayment(id, gatewayTxID string) *model.PaymentTransaction {
	return &model.PaymentTransaction{
		ID:          id,
		Status:      model.PaymentStatusPending,
		GatewayTxID: &gatewayTxID,
		InitiatedAt: time.Now().Add(-time.Hour),
	}
}

func newTestReconciler(repo *stubPaymentRepo, gw *stubGateway, uc *stubPaymentUC) *PaymentReconciler {
	logger := zerolog.Nop()
	return NewPaymentReconciler(time.Minute, 10*time.Minute, repo, gw, uc, &logger)
}

func TestSweepFinalizesStalePayments(t *testing.T) {
	repo := &stubPaymentRepo{pending: []*model.PaymentTransaction{
		stalePayment("pay-1", "gw-1"),
		stalePayment("pay-2", "gw-2"),
	}}
	gw := &stubGateway{lookupFunc: func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		if id == "gw-2" {
			return nil, fmt.Errorf("%w: connection refused", domain.ErrGatewayUnavailable)
		}
		return &adapter.LookupResult{TransactionID: id, Amount: decimal.NewFromInt(5000), Status: "successful"}, nil
	}}
	uc := &stubPaymentUC{}
	w := newTestReconciler(repo, gw, uc)

	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// pay-1 reconciled as success, pay-2 left for the next sweep.
	if len(uc.inputs) != 1 {
		t.Fatalf("reconcile calls = %d, want 1", len(uc.inputs))
	}
	in := uc.inputs[0]
	if in.MerchantTxID != "pay-1" || in.ResultCode != "0" || in.Source != "reconciler" {
		t.Fatalf("input = %+v", in)
	}
}

func TestSweepLeavesPendingOnGatewayOutage(t *testing.T) {
	repo := &stubPaymentRepo{pending: []*model.PaymentTransaction{stalePayment("pay-1", "gw-1")}}
	// The kind of error a dropped connection surfaces as: no verdict on the
	// transaction, only a failed transport.
	gw := &stubGateway{lookupFunc: func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		return nil, fmt.Errorf("%w: Get %q: EOF", domain.ErrGatewayUnavailable, "http://gateway/merchant/transactions/"+id)
	}}
	uc := &stubPaymentUC{}
	w := newTestReconciler(repo, gw, uc)

	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(uc.inputs) != 0 {
		t.Fatalf("reconcile calls = %d, a paid-but-unverifiable attempt must stay pending", len(uc.inputs))
	}
}

func TestSweepFailsDefinitivelyUnsuccessful(t *testing.T) {
	repo := &stubPaymentRepo{pending: []*model.PaymentTransaction{stalePayment("pay-1", "gw-1")}}
	gw := &stubGateway{lookupFunc: func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		return nil, domain.ErrGatewayLookup
	}}
	uc := &stubPaymentUC{}
	w := newTestReconciler(repo, gw, uc)

	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(uc.inputs) != 1 {
		t.Fatalf("reconcile calls = %d, want 1", len(uc.inputs))
	}
	if uc.inputs[0].ResultCode == "0" {
		t.Fatal("definitively unsuccessful transaction reconciled as success")
	}
}

func TestSweepNoStalePayments(t *testing.T) {
	repo := &stubPaymentRepo{}
	gw := &stubGateway{lookupFunc: func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		t.Error("no lookups expected")
		return nil, nil
	}}
	uc := &stubPaymentUC{}
	w := newTestReconciler(repo, gw, uc)

	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(uc.inputs) != 0 {
		t.Fatalf("reconcile calls = %d, want 0", len(uc.inputs))
	}
}
