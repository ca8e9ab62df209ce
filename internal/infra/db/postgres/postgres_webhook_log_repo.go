package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/repository"
)

var _ repository.WebhookLogRepository = (*webhookLogRepo)(nil)

type webhookLogRepo struct{ pool *pgxpool.Pool }

func NewWebhookLogRepo(pool *pgxpool.Pool) *webhookLogRepo {
	return &webhookLogRepo{pool: pool}
}

func (r *webhookLogRepo) Append(ctx context.Context, tx repository.Tx, l *model.WebhookLog) error {
	const q = `
INSERT INTO webhook_logs (id, merchant_tx_id, gateway_tx_id, result_code, result_message, raw_payload, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.MerchantTxID, l.GatewayTxID, l.ResultCode, l.ResultMessage, l.RawPayload, l.ReceivedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
