package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionPlanRepository = (*planRepo)(nil)

const planColumns = `id, name, description, price, duration, tier, max_users, max_storage_mb, is_popular, active, created_at, updated_at`

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListActive(ctx context.Context, qx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE active ORDER BY price ASC;`
	rows, err := queryRows(ctx, r.pool, qx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *planRepo) Save(ctx context.Context, qx repository.Tx, plan *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (` + planColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, description=EXCLUDED.description, price=EXCLUDED.price,
  duration=EXCLUDED.duration, tier=EXCLUDED.tier, max_users=EXCLUDED.max_users,
  max_storage_mb=EXCLUDED.max_storage_mb, is_popular=EXCLUDED.is_popular,
  active=EXCLUDED.active, updated_at=EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q,
		plan.ID, plan.Name, plan.Description, plan.Price, plan.Duration, plan.Tier,
		plan.MaxUsers, plan.MaxStorageMB, plan.IsPopular, plan.Active, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) Delete(ctx context.Context, qx repository.Tx, id string) error {
	// Soft delete: completed payments reference the plan row.
	const q = `UPDATE subscription_plans SET active=false, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, qx, q, id)
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

func scanPlan(row rowScanner) (*model.SubscriptionPlan, error) {
	p := &model.SubscriptionPlan{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Duration, &p.Tier,
		&p.MaxUsers, &p.MaxStorageMB, &p.IsPopular, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
