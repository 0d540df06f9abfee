package bootstrap

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Connect opens a SQLite-backed bun database for snapshot storage. Use
// ":memory:" as dsn for ephemeral stores.
func Connect(dsn string) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	return bun.NewDB(db, sqlitedialect.New()), nil
}

// EnsureSchema creates the snapshot table when missing.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*SessionSnapshot)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
