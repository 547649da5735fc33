package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Decimal columns are NUMERIC so 2 and 2.0 collide on the stock unique key.
var schema = []struct {
	name string
	ddl  string
}{
	{"stock_data", `
		CREATE TABLE IF NOT EXISTS stock_data (
			id         TEXT PRIMARY KEY,
			grade      TEXT NOT NULL,
			thickness  NUMERIC NOT NULL,
			width      NUMERIC NOT NULL,
			length     NUMERIC NOT NULL DEFAULT 0,
			finish     TEXT NOT NULL,
			quality    TEXT NOT NULL,
			edge       TEXT NOT NULL,
			quantity   NUMERIC NOT NULL CHECK (quantity >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (grade, thickness, width, length, finish, quality, edge)
		)`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			seq               BIGSERIAL UNIQUE,
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			grade             TEXT NOT NULL,
			thickness         NUMERIC NOT NULL,
			width             NUMERIC NOT NULL,
			length            NUMERIC NOT NULL,
			finish            TEXT NOT NULL,
			quality           TEXT NOT NULL,
			edge              TEXT NOT NULL,
			customer          TEXT NOT NULL,
			required_quantity NUMERIC NOT NULL CHECK (required_quantity > 0),
			delivery_days     INTEGER NOT NULL CHECK (delivery_days > 0),
			status            TEXT NOT NULL DEFAULT 'pending',
			b_quantity        TEXT NOT NULL DEFAULT '',
			ssp_ro_id         TEXT NOT NULL DEFAULT '',
			release_date      TEXT NOT NULL DEFAULT '',
			mou               TEXT NOT NULL DEFAULT '',
			remarks           TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL
		)`},
	{"orders_created_idx", `CREATE INDEX IF NOT EXISTS orders_created_idx ON orders (created_at DESC, seq DESC)`},
}

// Migrate creates the tables if they are missing. Safe to run on every start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, s := range schema {
		if _, err := db.Exec(ctx, s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
