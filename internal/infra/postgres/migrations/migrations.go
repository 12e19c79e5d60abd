package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the schema history of the Postgres record store.
var Migrations = migrate.NewMigrations()
