// Package migrations embeds the run ledger schema for each supported backend.
package migrations

import "embed"

// SQLite holds the migrations for the embedded sqlite ledger.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations for a shared PostgreSQL ledger.
//
//go:embed postgres/*.sql
var Postgres embed.FS
