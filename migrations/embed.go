// Package migrations embeds the SQL schema so the binaries can migrate the
// database without the files present on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
