package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

const webhookEventColumns = `id, event_type, gateway_payment_id, gateway_order_id, payload, status, attempts, received_at, processed_at`

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Insert(ctx context.Context, qx repository.Tx, ev *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (` + webhookEventColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, qx, q,
		ev.ID, ev.EventType, ev.GatewayPaymentID, ev.GatewayOrderID, ev.Payload,
		ev.Status, ev.Attempts, ev.ReceivedAt, ev.ProcessedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) ListPending(ctx context.Context, qx repository.Tx, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE status='pending' ORDER BY received_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, qx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		ev := &model.WebhookEvent{}
		if err := rows.Scan(
			&ev.ID, &ev.EventType, &ev.GatewayPaymentID, &ev.GatewayOrderID, &ev.Payload,
			&ev.Status, &ev.Attempts, &ev.ReceivedAt, &ev.ProcessedAt,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *webhookEventRepo) SetStatus(ctx context.Context, qx repository.Tx, id string, status model.WebhookEventStatus, at time.Time) error {
	const q = `UPDATE webhook_events SET status=$2, processed_at=$3 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, string(status), at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) BumpAttempts(ctx context.Context, qx repository.Tx, id string) error {
	const q = `UPDATE webhook_events SET attempts = attempts + 1 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) ExpireOlderThan(ctx context.Context, qx repository.Tx, cutoff time.Time) (int64, error) {
	const q = `UPDATE webhook_events SET status='expired', processed_at=NOW() WHERE status='pending' AND received_at < $1;`
	cmd, err := execSQL(ctx, r.pool, qx, q, cutoff)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}
