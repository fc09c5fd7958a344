// Package migrations holds the goose SQL migrations for PostgreSQL
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
