// Package migrations embeds the SQL schema so binaries and tests can
// bring a database up to date without shipping loose files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
