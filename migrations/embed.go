package migrations

import "embed"

// Files holds the goose SQL migrations for the user directory.
//
//go:embed *.sql
var Files embed.FS
