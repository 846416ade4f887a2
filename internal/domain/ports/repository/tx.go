package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function inside a database transaction and
// hands the transaction handle to repositories through the opaque `qx`
// argument. Use cases stay free of storage types; repositories detect a tx
// implementation-side (pgx.Tx for Postgres) and fall back to the pool when
// qx is nil.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx Tx) error) error
}
