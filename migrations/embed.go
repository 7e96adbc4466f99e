// Package migrations holds the numbered SQL schema files
package migrations

import "embed"

// FS contains every migration file
//
//go:embed *.sql
var FS embed.FS
