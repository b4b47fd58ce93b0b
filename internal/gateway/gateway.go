// Package gateway applies record mutations to the store, one transaction
// per mutation, and reports the outcome to the user. Integrity violations
// are reported and recovered; every other failure is returned.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/display"
	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Store opens transactional scopes. *store.Backend implements it.
type Store interface {
	InTx(ctx context.Context, fn func(*store.Tx) error) error
}

// Notifier shows mutation outcomes to the user. ui.Toolkit implements it.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Gateway runs create, update and delete against a Store.
type Gateway struct {
	store Store
}

// New returns a gateway over s.
func New(s Store) *Gateway {
	return &Gateway{store: s}
}

type op struct {
	verb string // creating, updating, deleting
	done string // Added, Updated, Deleted
}

var (
	opCreate = op{verb: "creating", done: "Added"}
	opUpdate = op{verb: "updating", done: "Updated"}
	opDelete = op{verb: "deleting", done: "Deleted"}
)

// Create inserts rec and stores its new identity in it. It reports false
// when the store rejected the record with an integrity violation.
func (g *Gateway) Create(ctx context.Context, n Notifier, rt *schema.RecordType, rec any) (bool, error) {
	return g.run(ctx, n, opCreate, rt, rec, func(tx *store.Tx) error {
		return tx.Insert(ctx, rt, rec)
	})
}

// Update writes columns of rec (all of them when columns is nil) to its
// row. A row deleted in the meantime is reported like an integrity
// violation.
func (g *Gateway) Update(ctx context.Context, n Notifier, rt *schema.RecordType, rec any, columns []string) (bool, error) {
	return g.run(ctx, n, opUpdate, rt, rec, func(tx *store.Tx) error {
		return tx.Update(ctx, rt, rec, columns)
	})
}

// Delete removes the row of rec.
func (g *Gateway) Delete(ctx context.Context, n Notifier, rt *schema.RecordType, rec any) (bool, error) {
	return g.run(ctx, n, opDelete, rt, rec, func(tx *store.Tx) error {
		return tx.Delete(ctx, rt, rec)
	})
}

func (g *Gateway) run(ctx context.Context, n Notifier, o op, rt *schema.RecordType, rec any, fn func(*store.Tx) error) (bool, error) {
	err := g.store.InTx(ctx, fn)
	label := display.Label(rt, rec)
	name := display.TypeName(rt)
	switch {
	case err == nil:
		msg := fmt.Sprintf("%s %s %q", o.done, name, label)
		logger.Info(msg)
		n.Success(msg)
		return true, nil
	case errors.Is(err, types.ErrIntegrity), errors.Is(err, types.ErrNotFound):
		msg := fmt.Sprintf("Error %s %s %q: %v", o.verb, name, label, err)
		logger.Error(msg)
		n.Error(msg)
		return false, nil
	}
	return false, fmt.Errorf("%s %s: %w", o.verb, rt.Table, err)
}
