// Package migrations embeds the goose migrations of the sqlite store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
