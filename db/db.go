// Package db embeds the SQL migrations for each supported dialect.
package db

import "embed"

// Migrations holds migrations/<dialect>/NNNN_name.{up,down}.sql.
//
//go:embed migrations
var Migrations embed.FS
