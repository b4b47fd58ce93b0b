package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

type item struct {
	ID   int64  `db:"id"`
	Name string `db:"name,unique"`
}

type notices struct {
	success []string
	errors  []string
}

func (n *notices) Success(msg string) { n.success = append(n.success, msg) }
func (n *notices) Error(msg string)   { n.errors = append(n.errors, msg) }

func setup(t *testing.T) (*Gateway, *store.Backend, *schema.RecordType) {
	t.Helper()
	logger.SetLogLevel(logger.LogLevelNone)
	ctx := context.Background()

	rt, err := schema.Describe(item{})
	require.NoError(t, err)

	b := store.NewBackend()
	require.NoError(t, b.Attach(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	require.NoError(t, b.CreateTables(ctx, rt))
	return New(b), b, rt
}

func TestGateway_Create(t *testing.T) {
	g, b, rt := setup(t)
	ctx := context.Background()
	n := &notices{}

	rec := &item{Name: "Test"}
	ok, err := g.Create(ctx, n, rt, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, []string{`Added Item "Test"`}, n.success)

	ok, err = g.Create(ctx, n, rt, &item{Name: "Test"})
	require.NoError(t, err, "integrity violations are reported, not returned")
	assert.False(t, ok)
	require.Len(t, n.errors, 1)
	assert.Contains(t, n.errors[0], `Error creating Item "Test": `)

	count, err := b.Count(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGateway_UpdateDelete(t *testing.T) {
	g, b, rt := setup(t)
	ctx := context.Background()
	n := &notices{}

	a := &item{Name: "A"}
	other := &item{Name: "B"}
	_, err := g.Create(ctx, n, rt, a)
	require.NoError(t, err)
	_, err = g.Create(ctx, n, rt, other)
	require.NoError(t, err)

	a.Name = "B"
	ok, err := g.Update(ctx, n, rt, a, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, n.errors[0], `Error updating Item "B"`)

	a.Name = "C"
	ok, err = g.Update(ctx, n, rt, a, []string{"name"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, n.success, `Updated Item "C"`)

	ok, err = g.Delete(ctx, n, rt, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, n.success, `Deleted Item "C"`)

	// The row is gone; a second delete is reported.
	ok, err = g.Delete(ctx, n, rt, a)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, n.errors, 2)

	count, err := b.Count(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type failingStore struct{ err error }

func (f failingStore) InTx(context.Context, func(*store.Tx) error) error { return f.err }

func TestGateway_OtherErrorsAreReturned(t *testing.T) {
	logger.SetLogLevel(logger.LogLevelNone)
	rt, err := schema.Describe(item{})
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	g := New(failingStore{err: boom})
	n := &notices{}

	ok, err := g.Create(context.Background(), n, rt, &item{Name: "x"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, n.errors)
	assert.Empty(t, n.success)

	_, err = g.Delete(context.Background(), n, rt, &item{ID: 1})
	assert.ErrorIs(t, err, boom)

	g = New(failingStore{err: types.ErrStoreDetached})
	_, err = g.Update(context.Background(), n, rt, &item{ID: 1}, nil)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}
