package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
)

var _ repository.OfferRepository = (*offerRepo)(nil)

// value is NUMERIC in the table; it travels as text to keep exact decimals.
const offerColumns = `id, code, name, description, type, value::text, min_order_amount, start_date, end_date, max_usage_count, used_count, active, created_at, updated_at`

type offerRepo struct{ pool *pgxpool.Pool }

func NewOfferRepo(pool *pgxpool.Pool) *offerRepo {
	return &offerRepo{pool: pool}
}

func (r *offerRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Offer, error) {
	return r.findOne(ctx, qx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, id)
}

func (r *offerRepo) FindByCode(ctx context.Context, qx repository.Tx, code string) (*model.Offer, error) {
	return r.findOne(ctx, qx, `SELECT `+offerColumns+` FROM offers WHERE code=$1`, code)
}

func (r *offerRepo) findOne(ctx context.Context, qx repository.Tx, q string, args ...interface{}) (*model.Offer, error) {
	q += " LIMIT 1;"
	row, err := pickRow(ctx, r.pool, qx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanOffer(row)
}

func (r *offerRepo) Save(ctx context.Context, qx repository.Tx, offer *model.Offer) error {
	const q = `
INSERT INTO offers (id, code, name, description, type, value, min_order_amount, start_date, end_date, max_usage_count, used_count, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  code=EXCLUDED.code, name=EXCLUDED.name, description=EXCLUDED.description,
  type=EXCLUDED.type, value=EXCLUDED.value, min_order_amount=EXCLUDED.min_order_amount,
  start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date,
  max_usage_count=EXCLUDED.max_usage_count, active=EXCLUDED.active,
  updated_at=EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q,
		offer.ID, model.NormalizeOfferCode(offer.Code), offer.Name, offer.Description,
		offer.Type, offer.Value.String(), offer.MinOrderAmount, offer.StartDate, offer.EndDate,
		offer.MaxUsageCount, offer.UsedCount, offer.Active, offer.CreatedAt, offer.UpdatedAt,
	)
	if err != nil {
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

func (r *offerRepo) ConsumeUsage(ctx context.Context, qx repository.Tx, id string) (bool, error) {
	// Cap is enforced in the same statement, so concurrent redemptions of a
	// capped offer can never oversell it.
	const q = `
UPDATE offers
   SET used_count = used_count + 1,
       updated_at = NOW()
 WHERE id = $1
   AND (max_usage_count IS NULL OR used_count < max_usage_count);`

	cmd, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanOffer(row rowScanner) (*model.Offer, error) {
	o := &model.Offer{}
	var value string
	err := row.Scan(
		&o.ID, &o.Code, &o.Name, &o.Description, &o.Type, &value, &o.MinOrderAmount,
		&o.StartDate, &o.EndDate, &o.MaxUsageCount, &o.UsedCount, &o.Active,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if o.Value, err = decimal.NewFromString(value); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}
