package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema change; files named <version>_<name>.go register themselves.
var Migrations = migrate.NewMigrations()
