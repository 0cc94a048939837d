// Package migrations embeds the workflow audit schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
