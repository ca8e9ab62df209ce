package repository

import (
	"context"
	"time"

	"ridehail-backoffice/internal/domain/model"
)

// UserRepository resolves transaction owners and maintains the denormalized
// subscription projection on the role-specific profile row.
type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)

	// UpdateSubscriptionFields overwrites subscription_status and the
	// start/end dates on the driver or rider profile selected by role.
	// Runs inside the same transaction as Subscription creation.
	UpdateSubscriptionFields(ctx context.Context, tx Tx, userID string, role model.Role, status string, start, end time.Time) error
}
