// Package migrations embeds the SQL schema for the frequency key-value
// store and the captured event log, one directory per dialect.
package migrations

import "embed"

// Embedded migration files bundled at compile time
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
