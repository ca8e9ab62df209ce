package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/repository"
)

var _ repository.PlanPriceRepository = (*planPriceRepo)(nil)

// planPriceRepo reads the externally managed price table. Rows are edited
// through the admin dashboard, never by this core.
type planPriceRepo struct{ pool *pgxpool.Pool }

func NewPlanPriceRepo(pool *pgxpool.Pool) *planPriceRepo {
	return &planPriceRepo{pool: pool}
}

func (r *planPriceRepo) FindByTag(ctx context.Context, tx repository.Tx, tag string) (*model.PlanPrice, error) {
	const q = `SELECT tag, amount, currency, updated_at FROM plan_prices WHERE tag=$1 AND active;`
	row, err := pickRow(ctx, r.pool, tx, q, tag)
	if err != nil {
		return nil, err
	}

	p := &model.PlanPrice{}
	if err := row.Scan(&p.Tag, &p.Amount, &p.Currency, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
