// Package migrations embeds the schema migrations for every supported store driver.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per driver (postgres, sqlite).
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
