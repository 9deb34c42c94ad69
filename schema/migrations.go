// Package schema contains embedded migration files.
package schema

import "embed"

// PgMigrationsFS contains the postgres migrations under pgmigrations/.
//
//go:embed pgmigrations/*.sql
var PgMigrationsFS embed.FS

// SQLiteMigrationsFS contains the sqlite migrations under sqlitemigrations/.
//
//go:embed sqlitemigrations/*.sql
var SQLiteMigrationsFS embed.FS
