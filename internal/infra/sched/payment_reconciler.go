package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/ports/adapter"
	"ridehail-backoffice/internal/domain/ports/repository"
	"ridehail-backoffice/internal/infra/metrics"
	"ridehail-backoffice/internal/usecase"
)

const reconcileBatchSize = 100

// PaymentReconciler periodically sweeps stale pending payments whose callback
// never arrived and drives them to a terminal state via the gateway's
// transaction lookup.
type PaymentReconciler struct {
	interval   time.Duration
	staleAfter time.Duration
	payments   repository.PaymentTransactionRepository
	gateway    adapter.PaymentGateway
	payUC      usecase.PaymentUseCase
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	interval, staleAfter time.Duration,
	payments repository.PaymentTransactionRepository,
	gateway adapter.PaymentGateway,
	payUC usecase.PaymentUseCase,
	logger *zerolog.Logger,
) *PaymentReconciler {
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		interval:   interval,
		staleAfter: staleAfter,
		payments:   payments,
		gateway:    gateway,
		payUC:      payUC,
		log:        &recLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.log.Error().Err(err).Msg("reconciler sweep error")
			}
		}
	}
}

func (w *PaymentReconciler) sweep(ctx context.Context) error {
	metrics.IncReconcilerTick()

	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, reconcileBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	w.log.Info().Int("count", len(stale)).Msg("reconciling stale pending payments")

	for _, p := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.reconcileOne(ctx, p.ID, *p.GatewayTxID)
	}
	return nil
}

// reconcileOne resolves one stale attempt. Transient gateway errors leave the
// attempt pending for the next sweep; only a definitive answer from the
// gateway finalizes it.
func (w *PaymentReconciler) reconcileOne(ctx context.Context, paymentID, gatewayTxID string) {
	in := usecase.ReconcileInput{
		MerchantTxID: paymentID,
		GatewayTxID:  gatewayTxID,
		Source:       "reconciler",
	}

	lookup, err := w.gateway.LookupTransaction(ctx, gatewayTxID)
	switch {
	case err == nil:
		in.ResultCode = "0"
		in.Raw = lookup.Raw
	case errors.Is(err, domain.ErrGatewayLookup):
		// The gateway answered: the transaction is not successful.
		in.ResultCode = "1"
		in.ResultMessage = err.Error()
	default:
		// No answer (unreachable, auth failure). The attempt stays pending;
		// finalizing on anything but a definitive gateway verdict would fail
		// genuinely paid transactions during an outage.
		w.log.Warn().Err(err).Str("payment_id", paymentID).Msg("gateway lookup unavailable, will retry")
		return
	}

	out, err := w.payUC.Reconcile(ctx, in)
	if err != nil {
		w.log.Error().Err(err).Str("payment_id", paymentID).Msg("stale payment reconciliation failed")
		return
	}
	if !out.AlreadyProcessed {
		metrics.IncReconcilerRecovered()
		w.log.Info().
			Str("payment_id", paymentID).
			Str("status", string(out.Payment.Status)).
			Msg("stale payment finalized")
	}
}
