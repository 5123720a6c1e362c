// Package migrations embeds the goose SQL migrations for the local
// message cache. Migrations are additive only: a schema version bump must
// never destroy cached data.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
