// Package crud generates create, update and delete forms for record types
// and binds their submission to the store.
//
// A Handle owns the store connection and the record type registry. It is
// initialized once; until then every form operation fails with
// types.ErrNotInitialized. Most programs use the package-level default
// handle:
//
//	if err := crud.Initialize(ctx, types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
//	    return err
//	}
//	users := crud.For[User]()
//	err := users.CrudTabs(ctx, tk, crud.TabsOptions{})
package crud

import (
	"context"
	"sync"

	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Handle is the connection of a set of record types to one database.
type Handle struct {
	mu       sync.RWMutex
	backend  *store.Backend
	owned    bool // backend was opened by Initialize and is closed by Close
	registry *schema.Registry
}

// NewHandle returns an uninitialized handle with an empty registry.
func NewHandle() *Handle {
	return &Handle{registry: schema.NewRegistry()}
}

// Initialize opens the database described by config. A handle is
// initialized once: later calls log a warning, keep the first connection
// and return ErrAlreadyInitialized.
func (h *Handle) Initialize(ctx context.Context, config types.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backend != nil {
		logger.Warning("crudforms: Initialize called more than once; keeping the first connection")
		return types.ErrAlreadyInitialized
	}
	b := store.NewBackend()
	if err := b.Attach(ctx, config); err != nil {
		return err
	}
	h.backend, h.owned = b, true
	return nil
}

// Use initializes the handle with a backend the caller has attached and
// keeps ownership of.
func (h *Handle) Use(b *store.Backend) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backend != nil {
		logger.Warning("crudforms: Use called on an initialized handle; keeping the first connection")
		return types.ErrAlreadyInitialized
	}
	h.backend, h.owned = b, false
	return nil
}

// Initialized reports whether the handle has a connection.
func (h *Handle) Initialized() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.backend != nil
}

// Backend returns the connection, or ErrNotInitialized.
func (h *Handle) Backend() (*store.Backend, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.backend == nil {
		return nil, types.ErrNotInitialized
	}
	return h.backend, nil
}

// Register adds record types to the handle. Foreign keys of a type resolve
// only against registered types. Registering does not need a connection.
func (h *Handle) Register(models ...any) error {
	return h.registry.Register(models...)
}

// CreateTables creates the tables of every registered type that does not
// exist yet.
func (h *Handle) CreateTables(ctx context.Context) error {
	b, err := h.Backend()
	if err != nil {
		return err
	}
	return b.CreateTables(ctx, h.registry.All()...)
}

// Close detaches a backend opened by Initialize and returns the handle to
// the uninitialized state. Registered types are kept.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backend == nil {
		return nil
	}
	var err error
	if h.owned {
		err = h.backend.Detach()
	}
	h.backend, h.owned = nil, false
	return err
}

var defaultHandle = NewHandle()

// Default returns the process-wide handle used by For.
func Default() *Handle { return defaultHandle }

// Initialize initializes the default handle.
func Initialize(ctx context.Context, config types.Config) error {
	return defaultHandle.Initialize(ctx, config)
}

// Register adds record types to the default handle.
func Register(models ...any) error {
	return defaultHandle.Register(models...)
}

// CreateTables creates the tables of the default handle.
func CreateTables(ctx context.Context) error {
	return defaultHandle.CreateTables(ctx)
}
