// Package all registers every storage backend with the factory.
//
// Blank-import this package from binaries that select the backend at
// runtime via config.
package all

import (
	_ "inventory/internal/storage/mssql"
	_ "inventory/internal/storage/postgres"
	_ "inventory/internal/storage/sqlite"
)
