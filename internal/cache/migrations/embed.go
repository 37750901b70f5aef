// Package migrations embeds the entity cache schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
