package usecase

import (
	"context"

	"oproz-billing/internal/domain/ports/repository"
)

// StatsUseCase feeds the back-office dashboard with revenue totals.
type StatsUseCase interface {
	// Revenue returns the Success-record totals (minor units) since the start
	// of the current week, month and year.
	Revenue(ctx context.Context) (week, month, year int64, err error)
}

var _ StatsUseCase = (*statsUC)(nil)

type statsUC struct {
	payments repository.PaymentRecordRepository
}

func NewStatsUseCase(payments repository.PaymentRecordRepository) StatsUseCase {
	return &statsUC{payments: payments}
}

func (u *statsUC) Revenue(ctx context.Context) (week, month, year int64, err error) {
	if week, err = u.payments.SumByPeriod(ctx, repository.NoTX, "week"); err != nil {
		return 0, 0, 0, err
	}
	if month, err = u.payments.SumByPeriod(ctx, repository.NoTX, "month"); err != nil {
		return 0, 0, 0, err
	}
	if year, err = u.payments.SumByPeriod(ctx, repository.NoTX, "year"); err != nil {
		return 0, 0, 0, err
	}
	return week, month, year, nil
}
