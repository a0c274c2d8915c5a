// Package migrations holds the PostgreSQL schema for the review queue.
package migrations

import "embed"

// FS contains the numbered golang-migrate files
//
//go:embed *.sql
var FS embed.FS
