package store

import (
	"context"
	"database/sql"
)

// Tx is the unit-of-work handle passed to WithTx's callback. It exposes the
// layer and feature operations the ingest and transaction engines use,
// scoped to one SQL transaction; symbology operations exist only on DB.
type Tx struct {
	q  querier
	tx *sql.Tx
}

// WithTx wraps fn in a single SQL transaction: all operations fn performs
// through tx commit together or are rolled back together (§4.C's
// unit-of-work primitive). A panic inside fn rolls back and repanics.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	tx := &Tx{q: sqlTx, tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(tx)
	return err
}

