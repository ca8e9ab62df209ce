// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/adapter"
	"ridehail-backoffice/internal/domain/ports/repository"
	"ridehail-backoffice/internal/infra/logging"
	"ridehail-backoffice/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// ReconcileInput is the normalized gateway result handed to the engine by
// the callback adapter or the background reconciler.
type ReconcileInput struct {
	MerchantTxID  string
	GatewayTxID   string
	ResultCode    string
	ResultMessage string
	Raw           []byte
	Source        string // "callback" | "reconciler"
}

// ReconcileOutcome is the terminal result of one reconciliation invocation.
type ReconcileOutcome struct {
	Payment          *model.PaymentTransaction
	SubscriptionID   string
	Activated        bool // a subscription was created by THIS invocation
	AlreadyProcessed bool // the attempt was terminal before this invocation
	FailureReason    string
}

type PaymentUseCase interface {
	// Initiate creates a fresh pending attempt and returns the gateway
	// redirect URL. Every call produces a new PaymentTransaction; retries
	// never reuse a prior row.
	Initiate(ctx context.Context, userID string, amount int64, currency, description string) (*model.PaymentTransaction, string, error)

	// Reconcile drives one attempt to a terminal state given a gateway
	// result. Idempotent: replays and races resolve to the first outcome.
	Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileOutcome, error)

	// Confirm is the client-initiated path: validates plan/role/price
	// ownership, looks the transaction up at the gateway, then applies the
	// shared success logic.
	Confirm(ctx context.Context, userID, gatewayTxID, planTag string) (*ReconcileOutcome, error)

	// ActiveSubscription returns the user's current unexpired subscription,
	// or ErrNotFound when none is active.
	ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error)
}

type paymentUC struct {
	payments repository.PaymentTransactionRepository
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	prices   repository.PlanPriceRepository
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentTransactionRepository,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	prices repository.PlanPriceRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *paymentUC {
	if notifier == nil {
		notifier = adapter.NoopNotifier{}
	}
	return &paymentUC{
		payments: payments,
		subs:     subs,
		users:    users,
		prices:   prices,
		gateway:  gateway,
		tm:       tm,
		notifier: notifier,
		log:      logger,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, userID string, amount int64, currency, description string) (*model.PaymentTransaction, string, error) {
	if amount <= 0 {
		return nil, "", fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if currency == "" {
		currency = "GYD"
	}
	if _, err := u.users.FindByID(ctx, nil, userID); err != nil {
		return nil, "", err
	}

	now := time.Now()
	p := &model.PaymentTransaction{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Method:      u.gateway.Name(),
		Status:      model.PaymentStatusPending,
		InitiatedAt: now,
		Description: description,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, "", err
	}

	redirectURL, err := u.gateway.CheckoutURL(adapter.CheckoutPayload{
		MerchantTxID: p.ID,
		Amount:       amount,
		Currency:     currency,
		Description:  description,
	})
	if err != nil {
		return nil, "", err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("payment_id", p.ID).Str("user_id", userID).Int64("amount", amount).Msg("payment initiated")
	return p, redirectURL, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()

	p, err := u.payments.FindByID(ctx, nil, in.MerchantTxID)
	if err != nil {
		metrics.IncReconcileOutcome("not_found", in.Source)
		return nil, err
	}

	// Idempotency: terminal rows are never touched again. Safe against the
	// gateway's at-least-once delivery and client replays.
	if p.Terminal() {
		metrics.IncReconcileOutcome("duplicate", in.Source)
		return terminalOutcome(p), nil
	}

	if !successCode(in.ResultCode) {
		return u.applyFailure(ctx, p, in)
	}

	user, err := u.users.FindByID(ctx, nil, p.UserID)
	if err != nil {
		return nil, err
	}
	out, err := u.applyActivation(ctx, p, user, activation{
		gatewayTxID: in.GatewayTxID,
		raw:         in.Raw,
		paidAt:      time.Now(),
		insertRow:   false,
		source:      in.Source,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *paymentUC) Confirm(ctx context.Context, userID, gatewayTxID, planTag string) (*ReconcileOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Confirm")()

	requiredRole := model.RoleForPlan(planTag)
	if requiredRole == "" {
		return nil, fmt.Errorf("%w: unknown subscription type %q", domain.ErrValidation, planTag)
	}
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != requiredRole {
		return nil, fmt.Errorf("%w: subscription type %q is not available for role %q", domain.ErrValidation, planTag, user.Role)
	}

	// Replay / cross-user claim checks happen before any gateway call.
	if existing, err := u.payments.FindCompletedByGatewayTxID(ctx, nil, gatewayTxID); err == nil {
		if existing.UserID != userID {
			return nil, domain.ErrConflict
		}
		metrics.IncReconcileOutcome("duplicate", "confirm")
		return terminalOutcome(existing), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	price, err := u.prices.FindByTag(ctx, nil, planTag)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no price for %q", domain.ErrPriceNotConfigured, planTag)
		}
		return nil, err
	}
	if price.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %q", domain.ErrPriceNotConfigured, planTag)
	}

	lookup, err := u.gateway.LookupTransaction(ctx, gatewayTxID)
	if err != nil {
		return nil, err
	}

	// Exact numeric equality, not "close enough".
	if !lookup.Amount.Equal(decimal.NewFromInt(price.Amount)) {
		u.log.Warn().
			Str("gateway_tx_id", gatewayTxID).
			Str("looked_up", lookup.Amount.String()).
			Int64("expected", price.Amount).
			Msg("confirmation amount mismatch")
		return nil, fmt.Errorf("%w: gateway reports %s, configured price is %d", domain.ErrAmountMismatch, lookup.Amount.String(), price.Amount)
	}

	// This path observes a payment already completed at the gateway, so the
	// synthesized attempt goes straight through the shared success logic.
	now := time.Now()
	p := &model.PaymentTransaction{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Amount:      price.Amount,
		Currency:    price.Currency,
		Method:      u.gateway.Name(),
		Status:      model.PaymentStatusPending,
		InitiatedAt: now,
		Description: planTag,
	}
	out, err := u.applyActivation(ctx, p, user, activation{
		gatewayTxID: gatewayTxID,
		gatewayRef:  lookup.Reference,
		raw:         lookup.Raw,
		paidAt:      now,
		planTag:     planTag,
		insertRow:   true,
		source:      "confirm",
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race on the gateway-id claim. Re-read to tell an
			// idempotent replay apart from a cross-user conflict.
			if existing, ferr := u.payments.FindCompletedByGatewayTxID(ctx, nil, gatewayTxID); ferr == nil {
				if existing.UserID == userID {
					metrics.IncReconcileOutcome("duplicate", "confirm")
					return terminalOutcome(existing), nil
				}
				return nil, domain.ErrConflict
			}
		}
		return nil, err
	}
	return out, nil
}

func (u *paymentUC) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return u.subs.FindActiveByUser(ctx, nil, userID)
}

// activation carries the success-application parameters shared by the
// callback and confirmation paths.
type activation struct {
	gatewayTxID string
	gatewayRef  string
	raw         []byte
	paidAt      time.Time
	planTag     string
	insertRow   bool // confirmation path synthesizes the attempt row
	source      string
}

// applyActivation applies a successful payment: subscription row, payment
// completion and profile projection in one atomic unit. Losing the completion
// CAS resolves to the winner's outcome instead of an error.
func (u *paymentUC) applyActivation(ctx context.Context, p *model.PaymentTransaction, user *model.User, act activation) (*ReconcileOutcome, error) {
	start := act.paidAt
	end := start.Add(model.SubscriptionWindow)
	planTag := act.planTag
	if planTag == "" {
		planTag = planForRole(user.Role)
	}

	sub := &model.Subscription{
		ID:         ulid.Make().String(),
		UserID:     user.ID,
		Role:       user.Role,
		PlanType:   planTag,
		Amount:     p.Amount,
		Currency:   p.Currency,
		StartAt:    start,
		EndAt:      end,
		Status:     model.SubscriptionStatusActive,
		Method:     p.Method,
		PaymentRef: act.gatewayTxID,
		PaidAt:     act.paidAt,
	}

	var lostRace bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if act.insertRow {
			if err := u.payments.Save(ctx, tx, p); err != nil {
				return err
			}
		}
		var ref *string
		if act.gatewayRef != "" {
			ref = &act.gatewayRef
		}
		ok, err := u.payments.CompleteIfPending(ctx, tx, p.ID, repository.CompletionUpdate{
			SubscriptionID: sub.ID,
			GatewayTxID:    act.gatewayTxID,
			GatewayRef:     ref,
			CompletedAt:    act.paidAt,
			RawResponse:    act.raw,
		})
		if err != nil {
			return err
		}
		if !ok {
			lostRace = true
			return errLostCompletionRace
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		return u.users.UpdateSubscriptionFields(ctx, tx, user.ID, user.Role, string(model.SubscriptionStatusActive), start, end)
	})
	if err != nil {
		if lostRace {
			// Someone else completed this attempt; report their outcome.
			fresh, ferr := u.payments.FindByID(ctx, nil, p.ID)
			if ferr != nil {
				return nil, ferr
			}
			metrics.IncReconcileOutcome("duplicate", act.source)
			return terminalOutcome(fresh), nil
		}
		return nil, err
	}

	p.Status = model.PaymentStatusCompleted
	p.SubscriptionID = &sub.ID
	p.GatewayTxID = &act.gatewayTxID
	p.CompletedAt = &act.paidAt

	metrics.IncPayment(string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	metrics.IncReconcileOutcome("activated", act.source)

	if err := u.notifier.Send(ctx, []string{user.ID}, "Subscription activated",
		fmt.Sprintf("Your %s subscription is active until %s.", planTag, end.Format("2 Jan 2006"))); err != nil {
		u.log.Warn().Err(err).Str("user_id", user.ID).Msg("activation notification failed")
	}

	u.log.Info().
		Str("payment_id", p.ID).
		Str("subscription_id", sub.ID).
		Str("user_id", user.ID).
		Str("gateway_tx_id", act.gatewayTxID).
		Msg("subscription activated")

	return &ReconcileOutcome{
		Payment:        p,
		SubscriptionID: sub.ID,
		Activated:      true,
	}, nil
}

// applyFailure records a non-zero gateway result. A lost CAS means another
// invocation already finalized the attempt; its outcome stands.
func (u *paymentUC) applyFailure(ctx context.Context, p *model.PaymentTransaction, in ReconcileInput) (*ReconcileOutcome, error) {
	reason := in.ResultMessage
	if reason == "" {
		reason = fmt.Sprintf("gateway result code %s", in.ResultCode)
	}
	var gid *string
	if in.GatewayTxID != "" {
		gid = &in.GatewayTxID
	}

	ok, err := u.payments.FailIfPending(ctx, nil, p.ID, repository.FailureUpdate{
		GatewayTxID:  gid,
		RawResponse:  in.Raw,
		ErrorMessage: reason,
		FailedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, ferr := u.payments.FindByID(ctx, nil, p.ID)
		if ferr != nil {
			return nil, ferr
		}
		metrics.IncReconcileOutcome("duplicate", in.Source)
		return terminalOutcome(fresh), nil
	}

	metrics.IncPayment(string(model.PaymentStatusFailed))
	metrics.IncReconcileOutcome("failed", in.Source)
	u.log.Info().
		Str("payment_id", p.ID).
		Str("result_code", in.ResultCode).
		Str("reason", reason).
		Msg("payment failed")

	p.Status = model.PaymentStatusFailed
	p.GatewayTxID = gid
	p.ErrorMessage = &reason
	return &ReconcileOutcome{Payment: p, FailureReason: reason}, nil
}

var errLostCompletionRace = errors.New("payment completed by concurrent reconciliation")

// successCode reports whether a gateway result code means success.
// Exactly zero is success; anything else, including unparseable codes, is a
// failure.
func successCode(code string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	return err == nil && n == 0
}

func planForRole(role model.Role) string {
	switch role {
	case model.RoleDriver:
		return model.PlanDriverMonthly
	case model.RoleRider:
		return model.PlanRiderMonthly
	default:
		return ""
	}
}

// terminalOutcome maps an already-terminal attempt to the outcome its first
// reconciliation produced.
func terminalOutcome(p *model.PaymentTransaction) *ReconcileOutcome {
	out := &ReconcileOutcome{Payment: p, AlreadyProcessed: true}
	if p.Status == model.PaymentStatusCompleted {
		if p.SubscriptionID != nil {
			out.SubscriptionID = *p.SubscriptionID
		}
		return out
	}
	if p.ErrorMessage != nil {
		out.FailureReason = *p.ErrorMessage
	} else {
		out.FailureReason = "payment failed"
	}
	return out
}
