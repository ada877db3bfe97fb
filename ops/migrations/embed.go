// Package migrations embeds the SQL schema migrations and seed files.
package migrations

import "embed"

// Files holds schema/*.sql and seeds/*.sql.
//
//go:embed schema/*.sql seeds/*.sql
var Files embed.FS

const (
	SchemaDir = "schema"
	SeedsDir  = "seeds"
)
