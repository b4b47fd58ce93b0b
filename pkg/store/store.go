// Package store provides the public API for the relational store behind
// crudforms. It exposes the backend factory while keeping implementation
// details internal.
package store

import (
	"context"

	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Backend is a store session factory bound to one database.
type Backend = store.Backend

// Tx is one transactional scope of a Backend.
type Tx = store.Tx

// DatabaseFile is the SQLite file created in the data directory.
const DatabaseFile = store.DatabaseFile

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := store.NewBackend()
//	err := backend.Attach(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".crudforms-db",
//	})
//	defer backend.Detach()
func NewBackend() *Backend {
	return store.NewBackend()
}

// Open creates a backend and attaches it to the database described by
// config.
func Open(ctx context.Context, config types.Config) (*Backend, error) {
	b := store.NewBackend()
	if err := b.Attach(ctx, config); err != nil {
		return nil, err
	}
	return b, nil
}

// IsIntegrityError reports whether err is a constraint violation.
func IsIntegrityError(err error) bool {
	return store.IsIntegrityError(err)
}
