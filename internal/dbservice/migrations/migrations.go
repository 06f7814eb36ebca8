// internal/dbservice/migrations/migrations.go
package migrations

import "embed"

// FS holds the goose migration files applied at service startup.
//
//go:embed *.sql
var FS embed.FS
