package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRecordRepository = (*paymentRecordRepo)(nil)

const paymentColumns = `id, transaction_id, gateway_order_id, gateway_payment_id, user_id, company_id, plan_id, offer_id, base_amount, discount_amount, final_amount, currency, status, method, payment_date, subscription_start, subscription_end, notes, created_at, updated_at`

type paymentRecordRepo struct{ pool *pgxpool.Pool }

func NewPaymentRecordRepo(pool *pgxpool.Pool) *paymentRecordRepo {
	return &paymentRecordRepo{pool: pool}
}

func (r *paymentRecordRepo) Insert(ctx context.Context, qx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20);`

	_, err := execSQL(ctx, r.pool, qx, q,
		p.ID, p.TransactionID, p.GatewayOrderID, p.GatewayPaymentID, p.UserID, p.CompanyID,
		p.PlanID, p.OfferID, p.BaseAmount, p.DiscountAmount, p.FinalAmount, p.Currency,
		p.Status, p.Method, p.PaymentDate, p.SubscriptionStart, p.SubscriptionEnd, p.Notes,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		// Unique indexes on transaction_id and gateway_payment_id back the
		// activation idempotency guarantee.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRecordRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
}

func (r *paymentRecordRepo) FindByGatewayOrderID(ctx context.Context, qx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id=$1`, orderID)
}

func (r *paymentRecordRepo) FindByGatewayPaymentID(ctx context.Context, qx repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id=$1`, paymentID)
}

func (r *paymentRecordRepo) findOne(ctx context.Context, qx repository.Tx, q string, args ...interface{}) (*model.PaymentRecord, error) {
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += " LIMIT 1;"
	row, err := pickRow(ctx, r.pool, qx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(row)
}

func (r *paymentRecordRepo) ActivateIfPending(
	ctx context.Context, qx repository.Tx, id string, gatewayPaymentID, method string, paidAt, subStart, subEnd time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'success',
       gateway_payment_id = $2,
       method = COALESCE(NULLIF($3, ''), method),
       payment_date = $4,
       subscription_start = $5,
       subscription_end = $6,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, gatewayPaymentID, method, paidAt, subStart, subEnd)
	if err != nil {
		// The partial unique index on gateway_payment_id fires when another
		// record already carries this capture.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRecordRepo) UpdateStatusIfPending(
	ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, at time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       updated_at = $3
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, string(status), at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRecordRepo) MarkRefunded(
	ctx context.Context, qx repository.Tx, id string, note string, at time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'refunded',
       notes = CASE WHEN notes = '' THEN $2 ELSE notes || '; ' || $2 END,
       updated_at = $3
 WHERE id = $1
   AND status = 'success';`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, note, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRecordRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, qx, q, userID)
}

func (r *paymentRecordRepo) FindActiveByUser(ctx context.Context, qx repository.Tx, userID string, now time.Time) (*model.PaymentRecord, error) {
	// Several overlapping windows can exist (repurchase before expiry); the
	// latest end date wins.
	const q = `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE user_id = $1
   AND status = 'success'
   AND subscription_start <= $2
   AND subscription_end >= $2
 ORDER BY subscription_end DESC
 LIMIT 1;`

	row, err := pickRow(ctx, r.pool, qx, q, userID, now)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(row)
}

func (r *paymentRecordRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, qx, q, olderThan, limit)
}

func (r *paymentRecordRepo) SumByPeriod(ctx context.Context, qx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(final_amount),0) FROM payments WHERE status='success' AND payment_date >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, qx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *paymentRecordRepo) list(ctx context.Context, qx repository.Tx, q string, args ...interface{}) ([]*model.PaymentRecord, error) {
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRecord(row rowScanner) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	err := row.Scan(
		&p.ID, &p.TransactionID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.UserID, &p.CompanyID,
		&p.PlanID, &p.OfferID, &p.BaseAmount, &p.DiscountAmount, &p.FinalAmount, &p.Currency,
		&p.Status, &p.Method, &p.PaymentDate, &p.SubscriptionStart, &p.SubscriptionEnd, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
