package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT u.id, u.role, u.phone,
       COALESCE(d.subscription_status, p.subscription_status),
       COALESCE(d.subscription_start_date, p.subscription_start_date),
       COALESCE(d.subscription_end_date, p.subscription_end_date),
       u.registered_at
  FROM users u
  LEFT JOIN driver_profiles d ON d.user_id = u.id
  LEFT JOIN rider_profiles p ON p.user_id = u.id
 WHERE u.id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Role, &u.Phone, &u.SubscriptionStatus, &u.SubscriptionStartDate, &u.SubscriptionEndDate, &u.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// UpdateSubscriptionFields overwrites the denormalized projection on the
// role-specific profile. The role picks the table; the write runs inside the
// reconciliation transaction.
func (r *userRepo) UpdateSubscriptionFields(ctx context.Context, tx repository.Tx, userID string, role model.Role, status string, start, end time.Time) error {
	var q string
	switch role {
	case model.RoleDriver:
		q = `UPDATE driver_profiles SET subscription_status=$2, subscription_start_date=$3, subscription_end_date=$4, updated_at=NOW() WHERE user_id=$1;`
	case model.RoleRider:
		q = `UPDATE rider_profiles SET subscription_status=$2, subscription_start_date=$3, subscription_end_date=$4, updated_at=NOW() WHERE user_id=$1;`
	default:
		return domain.ErrInvalidArgument
	}

	cmd, err := execSQL(ctx, r.pool, tx, q, userID, status, start, end)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
