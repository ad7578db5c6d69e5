// Package migrations embeds the schema of the PostgreSQL document store.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
