// Package migrations holds the goose SQL migrations, embedded so the binary
// can migrate its own schema on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
