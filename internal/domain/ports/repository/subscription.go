package repository

import (
	"context"

	"ridehail-backoffice/internal/domain/model"
)

// SubscriptionRepository persists granted access windows. Creation happens
// inside the reconciliation transaction; rows are never mutated afterwards.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
}
