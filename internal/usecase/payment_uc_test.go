// File: internal/usecase/payment_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/adapter"
)

type ucFixture struct {
	payments *memPaymentRepo
	subs     *memSubRepo
	users    *memUserRepo
	prices   *memPriceRepo
	gateway  *mockGateway
	notifier *captureNotifier
	uc       PaymentUseCase
}

func newUCFixture() *ucFixture {
	f := &ucFixture{
		payments: newMemPaymentRepo(),
		subs:     newMemSubRepo(),
		users:    newMemUserRepo(),
		prices:   newMemPriceRepo(),
		gateway:  &mockGateway{},
		notifier: &captureNotifier{},
	}
	f.users.put(&model.User{ID: "user-1", Role: model.RoleDriver, RegisteredAt: time.Now()})
	f.users.put(&model.User{ID: "user-2", Role: model.RoleRider, RegisteredAt: time.Now()})
	f.prices.put(&model.PlanPrice{Tag: model.PlanDriverMonthly, Amount: 5000, Currency: "GYD"})
	f.prices.put(&model.PlanPrice{Tag: model.PlanRiderMonthly, Amount: 2000, Currency: "GYD"})
	f.uc = NewPaymentUseCase(f.payments, f.subs, f.users, f.prices, f.gateway, mockTxManager{}, f.notifier, newTestLogger())
	return f
}

func (f *ucFixture) seedPending(t *testing.T, id, userID string, amount int64) *model.PaymentTransaction {
	t.Helper()
	p := &model.PaymentTransaction{
		ID:          id,
		UserID:      userID,
		Amount:      amount,
		Currency:    "GYD",
		Method:      "mmg",
		Status:      model.PaymentStatusPending,
		InitiatedAt: time.Now().Add(-time.Minute),
	}
	if err := f.payments.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	return p
}

func TestInitiate(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	p, redirect, err := f.uc.Initiate(ctx, "user-1", 5000, "", "driver monthly")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if p.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}
	if p.Currency != "GYD" {
		t.Fatalf("currency = %s, want default GYD", p.Currency)
	}
	if redirect == "" {
		t.Fatal("expected a redirect URL")
	}
	if _, err := f.payments.FindByID(ctx, nil, p.ID); err != nil {
		t.Fatalf("pending row not persisted: %v", err)
	}

	// Retries create fresh attempts; ids never repeat.
	p2, _, err := f.uc.Initiate(ctx, "user-1", 5000, "GYD", "retry")
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if p2.ID == p.ID {
		t.Fatal("second attempt reused the first attempt's id")
	}
}

func TestInitiateValidation(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	if _, _, err := f.uc.Initiate(ctx, "user-1", 0, "GYD", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero amount: err = %v, want ErrValidation", err)
	}
	if _, _, err := f.uc.Initiate(ctx, "user-1", -10, "GYD", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative amount: err = %v, want ErrValidation", err)
	}
	if _, _, err := f.uc.Initiate(ctx, "ghost", 5000, "GYD", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestReconcileSuccess(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.seedPending(t, "pay-1", "user-1", 5000)

	out, err := f.uc.Reconcile(ctx, ReconcileInput{
		MerchantTxID: "pay-1",
		GatewayTxID:  "gw-100",
		ResultCode:   "0",
		Source:       "callback",
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !out.Activated || out.AlreadyProcessed {
		t.Fatalf("outcome = %+v, want fresh activation", out)
	}
	if out.SubscriptionID == "" {
		t.Fatal("expected a subscription id")
	}

	sub, err := f.subs.FindByID(ctx, nil, out.SubscriptionID)
	if err != nil {
		t.Fatalf("subscription not persisted: %v", err)
	}
	if got := sub.EndAt.Sub(sub.StartAt); got != model.SubscriptionWindow {
		t.Fatalf("subscription window = %v, want %v", got, model.SubscriptionWindow)
	}
	if sub.PaymentRef != "gw-100" {
		t.Fatalf("payment ref = %s, want gw-100", sub.PaymentRef)
	}

	u, _ := f.users.FindByID(ctx, nil, "user-1")
	if u.SubscriptionStatus == nil || *u.SubscriptionStatus != string(model.SubscriptionStatusActive) {
		t.Fatal("profile projection not updated")
	}
	if len(f.notifier.sends) != 1 {
		t.Fatalf("notifier sends = %d, want 1", len(f.notifier.sends))
	}
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.seedPending(t, "pay-1", "user-1", 5000)

	in := ReconcileInput{MerchantTxID: "pay-1", GatewayTxID: "gw-100", ResultCode: "0", Source: "callback"}
	first, err := f.uc.Reconcile(ctx, in)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	// The gateway delivers at least once; the second delivery must resolve to
	// the first outcome without a second credit.
	second, err := f.uc.Reconcile(ctx, in)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !second.AlreadyProcessed || second.Activated {
		t.Fatalf("replay outcome = %+v, want already-processed", second)
	}
	if second.SubscriptionID != first.SubscriptionID {
		t.Fatalf("replay subscription id = %s, want %s", second.SubscriptionID, first.SubscriptionID)
	}
	if f.subs.count() != 1 {
		t.Fatalf("subscriptions = %d, want 1", f.subs.count())
	}
}

func TestReconcileFailure(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.seedPending(t, "pay-1", "user-1", 5000)

	out, err := f.uc.Reconcile(ctx, ReconcileInput{
		MerchantTxID:  "pay-1",
		GatewayTxID:   "gw-100",
		ResultCode:    "17",
		ResultMessage: "insufficient funds",
		Source:        "callback",
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Activated || out.AlreadyProcessed {
		t.Fatalf("outcome = %+v, want plain failure", out)
	}
	if out.FailureReason != "insufficient funds" {
		t.Fatalf("failure reason = %q", out.FailureReason)
	}
	if f.subs.count() != 0 {
		t.Fatal("failed payment must not create a subscription")
	}
	p, _ := f.payments.FindByID(ctx, nil, "pay-1")
	if p.Status != model.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", p.Status)
	}

	// A late success callback for the same attempt must not flip it back.
	late, err := f.uc.Reconcile(ctx, ReconcileInput{MerchantTxID: "pay-1", GatewayTxID: "gw-100", ResultCode: "0", Source: "callback"})
	if err != nil {
		t.Fatalf("late Reconcile: %v", err)
	}
	if !late.AlreadyProcessed || late.FailureReason == "" {
		t.Fatalf("late outcome = %+v, want terminal failure replay", late)
	}
}

func TestReconcileUnknownTransaction(t *testing.T) {
	f := newUCFixture()
	_, err := f.uc.Reconcile(context.Background(), ReconcileInput{MerchantTxID: "ghost", ResultCode: "0", Source: "callback"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcileLostCompletionRace(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.seedPending(t, "pay-1", "user-1", 5000)

	// A concurrent reconciliation wins the CAS between our status read and
	// our completion attempt.
	raced := false
	f.payments.completeHook = func() {
		if raced {
			return
		}
		raced = true
		f.payments.mu.Lock()
		p := f.payments.store["pay-1"]
		p.Status = model.PaymentStatusCompleted
		subID := "sub-winner"
		gid := "gw-100"
		p.SubscriptionID = &subID
		p.GatewayTxID = &gid
		f.payments.mu.Unlock()
	}

	out, err := f.uc.Reconcile(ctx, ReconcileInput{MerchantTxID: "pay-1", GatewayTxID: "gw-100", ResultCode: "0", Source: "callback"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !out.AlreadyProcessed || out.Activated {
		t.Fatalf("outcome = %+v, want winner's outcome", out)
	}
	if out.SubscriptionID != "sub-winner" {
		t.Fatalf("subscription id = %s, want sub-winner", out.SubscriptionID)
	}
	if f.subs.count() != 0 {
		t.Fatal("losing reconciliation must not persist its subscription")
	}
}

func TestConfirmHappyPath(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	out, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !out.Activated {
		t.Fatalf("outcome = %+v, want activation", out)
	}
	if out.Payment.Amount != 5000 {
		t.Fatalf("amount = %d, want configured price 5000", out.Payment.Amount)
	}
	if out.Payment.GatewayTxID == nil || *out.Payment.GatewayTxID != "gw-500" {
		t.Fatal("gateway tx id not recorded on the synthesized attempt")
	}
	if f.gateway.lookups != 1 {
		t.Fatalf("gateway lookups = %d, want 1", f.gateway.lookups)
	}
}

func TestConfirmValidation(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	if _, err := f.uc.Confirm(ctx, "user-1", "gw-1", "gold_yearly"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown plan: err = %v, want ErrValidation", err)
	}
	// A driver cannot claim a rider plan.
	if _, err := f.uc.Confirm(ctx, "user-1", "gw-1", model.PlanRiderMonthly); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("role mismatch: err = %v, want ErrValidation", err)
	}
	if f.gateway.lookups != 0 {
		t.Fatalf("validation failures must not reach the gateway, lookups = %d", f.gateway.lookups)
	}
}

func TestConfirmReplaySkipsGateway(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	first, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	f.gateway.lookups = 0

	second, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if !second.AlreadyProcessed || second.SubscriptionID != first.SubscriptionID {
		t.Fatalf("replay outcome = %+v", second)
	}
	if f.gateway.lookups != 0 {
		t.Fatal("replay must be answered from storage, not the gateway")
	}
}

func TestConfirmCrossUserConflict(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	if _, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	f.gateway.lookupFunc = func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		return &adapter.LookupResult{TransactionID: id, Amount: decimal.NewFromInt(2000), Currency: "GYD", Status: "successful"}, nil
	}
	_, err := f.uc.Confirm(ctx, "user-2", "gw-500", model.PlanRiderMonthly)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestConfirmPriceNotConfigured(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.prices = newMemPriceRepo() // empty table
	f.uc = NewPaymentUseCase(f.payments, f.subs, f.users, f.prices, f.gateway, mockTxManager{}, f.notifier, newTestLogger())

	_, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if !errors.Is(err, domain.ErrPriceNotConfigured) {
		t.Fatalf("err = %v, want ErrPriceNotConfigured", err)
	}
	if f.gateway.lookups != 0 {
		t.Fatal("missing price must fail before the gateway lookup")
	}
}

func TestConfirmAmountMismatch(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.gateway.lookupFunc = func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		return &adapter.LookupResult{TransactionID: id, Amount: decimal.NewFromInt(4999), Currency: "GYD", Status: "successful"}, nil
	}

	_, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
	if f.subs.count() != 0 {
		t.Fatal("mismatched amount must not activate anything")
	}
}

func TestConfirmLookupFailure(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()
	f.gateway.lookupFunc = func(ctx context.Context, id string) (*adapter.LookupResult, error) {
		return nil, domain.ErrGatewayLookup
	}

	_, err := f.uc.Confirm(ctx, "user-1", "gw-500", model.PlanDriverMonthly)
	if !errors.Is(err, domain.ErrGatewayLookup) {
		t.Fatalf("err = %v, want ErrGatewayLookup", err)
	}
}

func TestSuccessCode(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"0", true},
		{" 0 ", true},
		{"00", true},
		{"1", false},
		{"-1", false},
		{"17", false},
		{"", false},
		{"ok", false},
	}
	for _, c := range cases {
		if got := successCode(c.code); got != c.want {
			t.Errorf("successCode(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestActiveSubscription(t *testing.T) {
	f := newUCFixture()
	ctx := context.Background()

	if _, err := f.uc.ActiveSubscription(ctx, "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no subscription: err = %v, want ErrNotFound", err)
	}

	now := time.Now()
	if err := f.subs.Save(ctx, nil, &model.Subscription{
		ID:       "sub-1",
		UserID:   "user-1",
		Role:     model.RoleDriver,
		PlanType: model.PlanDriverMonthly,
		Amount:   5000,
		Currency: "GYD",
		StartAt:  now,
		EndAt:    now.Add(model.SubscriptionWindow),
		Status:   model.SubscriptionStatusActive,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	sub, err := f.uc.ActiveSubscription(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveSubscription: %v", err)
	}
	if sub.ID != "sub-1" || sub.PlanType != model.PlanDriverMonthly {
		t.Fatalf("sub = %+v", sub)
	}

	// Another user's window must not leak across.
	if _, err := f.uc.ActiveSubscription(ctx, "user-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other user: err = %v, want ErrNotFound", err)
	}
}
