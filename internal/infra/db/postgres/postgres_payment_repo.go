package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/domain/ports/repository"
)

// isUniqueViolation reports a violated unique constraint, in particular the
// partial index guaranteeing one completed claim per gateway transaction id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ repository.PaymentTransactionRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentCols = `id, user_id, amount, currency, method, status, gateway_tx_id, gateway_ref, initiated_at, completed_at, raw_response, subscription_id, error_message, description`

func scanPayment(row pgx.Row) (*model.PaymentTransaction, error) {
	p := &model.PaymentTransaction{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.GatewayTxID, &p.GatewayRef, &p.InitiatedAt, &p.CompletedAt, &p.RawResponse, &p.SubscriptionID, &p.ErrorMessage, &p.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentTransaction) error {
	const q = `
INSERT INTO payment_transactions (
  id, user_id, amount, currency, method, status, gateway_tx_id, gateway_ref, initiated_at, completed_at, raw_response, subscription_id, error_message, description
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  status=$6, gateway_tx_id=$7, gateway_ref=$8, completed_at=$10, raw_response=$11, subscription_id=$12, error_message=$13;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.Amount, p.Currency, p.Method, p.Status, p.GatewayTxID, p.GatewayRef, p.InitiatedAt, p.CompletedAt, p.RawResponse, p.SubscriptionID, p.ErrorMessage, p.Description)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentCols + ` FROM payment_transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindCompletedByGatewayTxID(ctx context.Context, tx repository.Tx, gatewayTxID string) (*model.PaymentTransaction, error) {
	const q = `SELECT ` + paymentCols + ` FROM payment_transactions WHERE gateway_tx_id=$1 AND status='completed' LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, gatewayTxID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// CompleteIfPending atomically transitions pending -> completed. Zero rows
// affected means another reconciliation already finished this attempt.
func (r *paymentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, u repository.CompletionUpdate) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET status = 'completed',
       subscription_id = $2,
       gateway_tx_id = $3,
       gateway_ref = $4,
       completed_at = $5,
       raw_response = $6
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, u.SubscriptionID, u.GatewayTxID, u.GatewayRef, u.CompletedAt, u.RawResponse)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		if isUniqueViolation(err) {
			return false, domain.ErrConflict
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

// FailIfPending atomically transitions pending -> failed, preserving the
// gateway's message for the audit trail.
func (r *paymentRepo) FailIfPending(ctx context.Context, tx repository.Tx, id string, u repository.FailureUpdate) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET status = 'failed',
       gateway_tx_id = COALESCE($2, gateway_tx_id),
       raw_response = $3,
       error_message = $4,
       completed_at = $5
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, u.GatewayTxID, u.RawResponse, u.ErrorMessage, u.FailedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentCols + ` FROM payment_transactions WHERE status='pending' AND gateway_tx_id IS NOT NULL AND initiated_at < $1 ORDER BY initiated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		p := new(model.PaymentTransaction)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.GatewayTxID, &p.GatewayRef, &p.InitiatedAt, &p.CompletedAt, &p.RawResponse, &p.SubscriptionID, &p.ErrorMessage, &p.Description); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}
