package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	row_id   BIGSERIAL PRIMARY KEY,
	id       TEXT NOT NULL UNIQUE,
	name     TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	role     TEXT NOT NULL DEFAULT 'user'
);

CREATE TABLE IF NOT EXISTS questions (
	row_id   BIGSERIAL PRIMARY KEY,
	question TEXT NOT NULL,
	option_a TEXT NOT NULL,
	option_b TEXT NOT NULL,
	option_c TEXT NOT NULL,
	option_d TEXT NOT NULL,
	correct  CHAR(1) NOT NULL CHECK (correct IN ('A', 'B', 'C', 'D'))
);

CREATE TABLE IF NOT EXISTS scores (
	row_id  BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	score   INTEGER NOT NULL,
	date    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS scores_user_id_idx ON scores (user_id);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS scores, questions, users`)
			return err
		},
	)
}
