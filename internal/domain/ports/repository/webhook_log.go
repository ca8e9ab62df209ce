package repository

import (
	"context"

	"ridehail-backoffice/internal/domain/model"
)

// WebhookLogRepository is write-only from this core's perspective.
// Failures must never block the primary reconciliation outcome.
type WebhookLogRepository interface {
	Append(ctx context.Context, tx Tx, l *model.WebhookLog) error
}
