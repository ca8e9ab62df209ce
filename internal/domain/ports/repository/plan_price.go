package repository

import (
	"context"

	"ridehail-backoffice/internal/domain/model"
)

// PlanPriceRepository reads the externally managed price table.
type PlanPriceRepository interface {
	// FindByTag returns ErrNotFound for unknown tags.
	FindByTag(ctx context.Context, tx Tx, tag string) (*model.PlanPrice, error)
}
