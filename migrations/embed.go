// Package migrations embeds the PostgreSQL schema migrations so binaries
// can apply them without the files on disk.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
