// Package migrations holds the SQL schema of the receiving service. The files
// are plain golang-migrate pairs and are also embedded into the binaries.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
