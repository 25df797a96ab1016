// Package migrations embeds the SQL schema migrations applied by
// "medconnect-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
