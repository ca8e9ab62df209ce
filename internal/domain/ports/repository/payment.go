package repository

import (
	"context"
	"time"

	"ridehail-backoffice/internal/domain/model"
)

// PaymentTransactionRepository persists payment attempts. The conditional
// Complete/Fail updates are the storage-level compare-and-swap that makes
// concurrent reconciliations of the same attempt safe.
type PaymentTransactionRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentTransaction, error)

	// FindCompletedByGatewayTxID returns the completed attempt claiming the
	// given gateway transaction id, regardless of owner. ErrNotFound if none.
	FindCompletedByGatewayTxID(ctx context.Context, tx Tx, gatewayTxID string) (*model.PaymentTransaction, error)

	// CompleteIfPending transitions pending -> completed, attaching the
	// subscription id, gateway ids, completion time and raw response.
	// Returns false when the row was no longer pending (lost race / replay).
	CompleteIfPending(ctx context.Context, tx Tx, id string, sub CompletionUpdate) (bool, error)

	// FailIfPending transitions pending -> failed, preserving the gateway's
	// transaction id, raw response and failure message.
	FailIfPending(ctx context.Context, tx Tx, id string, fail FailureUpdate) (bool, error)

	// ListPendingOlderThan returns stale pending attempts that already carry
	// a gateway transaction id, for the background reconciler.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
}

// CompletionUpdate carries the fields written on pending -> completed.
type CompletionUpdate struct {
	SubscriptionID string
	GatewayTxID    string
	GatewayRef     *string
	CompletedAt    time.Time
	RawResponse    []byte
}

// FailureUpdate carries the fields written on pending -> failed.
type FailureUpdate struct {
	GatewayTxID  *string
	RawResponse  []byte
	ErrorMessage string
	FailedAt     time.Time
}
