// Package migrations embeds the Postgres schema applied by utils.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
