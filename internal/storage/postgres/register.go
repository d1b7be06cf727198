package postgres

import "inventory/internal/storage"

func init() {
	// registers the backend factory
	storage.Register("postgres", New)
}
