// Tests for the store backend against a SQLite database in a temp dir.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

type item struct {
	ID    int64  `db:"id"`
	Name  string `db:"name,unique"`
	Count int    `db:"count"`
}

func (item) TableName() string { return "item" }

type oneToMany struct {
	ID         int64  `db:"id"`
	FirstField string `db:"first_field"`
	TestItemID *int64 `db:"test_item_id,fk=item"`
}

func (oneToMany) TableName() string { return "one_to_many" }

type event struct {
	ID    int64      `db:"id"`
	Title string     `db:"title"`
	Day   time.Time  `db:"day,kind=date"`
	At    time.Time  `db:"at,kind=time"`
	When  *time.Time `db:"when"`
	Done  bool       `db:"done"`
	Score *float64   `db:"score"`
}

type fixture struct {
	ctx     context.Context
	backend *Backend
	items   *schema.RecordType
	links   *schema.RecordType
	events  *schema.RecordType
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(oneToMany{}, item{}, event{}))

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	require.NoError(t, b.CreateTables(ctx, reg.All()...))

	f := fixture{ctx: ctx, backend: b}
	f.items, _ = reg.Lookup("item")
	f.links, _ = reg.Lookup("one_to_many")
	f.events, _ = reg.Lookup("event")
	return f
}

func (f fixture) insert(t *testing.T, rt *schema.RecordType, rec any) error {
	t.Helper()
	return f.backend.InTx(f.ctx, func(tx *Tx) error {
		return tx.Insert(f.ctx, rt, rec)
	})
}

func TestBackend_Attach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, config))

	_, err := os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err, "database file not created")
	assert.Equal(t, filepath.Join(dir, DatabaseFile), b.Path())

	assert.ErrorIs(t, b.Attach(ctx, config), types.ErrAlreadyAttached)
	require.NoError(t, b.Detach())
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(context.Background(), types.Config{Backend: types.BackendPostgres})
	assert.ErrorIs(t, err, types.ErrDSNEmpty)
}

func TestBackend_Detach(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.backend.Detach())
	assert.NoError(t, f.backend.Detach(), "second Detach should not error")

	_, err := f.backend.ListAll(f.ctx, f.items, nil)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	err = f.backend.InTx(f.ctx, func(*Tx) error { return nil })
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_InsertAndList(t *testing.T) {
	f := setup(t)

	a := &item{Name: "Test", Count: 1}
	require.NoError(t, f.insert(t, f.items, a))
	assert.NotZero(t, a.ID)
	require.NoError(t, f.insert(t, f.items, &item{Name: "Other", Count: 2}))

	recs, err := f.backend.ListAll(f.ctx, f.items, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, a, recs[0])

	recs, err = f.backend.ListAll(f.ctx, f.items, map[string]any{"count": 2})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Other", recs[0].(*item).Name)

	got, err := f.backend.Get(f.ctx, f.items, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = f.backend.Get(f.ctx, f.items, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.backend.ListAll(f.ctx, f.items, map[string]any{"missing": 1})
	assert.ErrorIs(t, err, types.ErrUnknownField)
}

func TestBackend_ForeignKeys(t *testing.T) {
	f := setup(t)

	a := &item{Name: "Test"}
	require.NoError(t, f.insert(t, f.items, a))

	link := &oneToMany{FirstField: "x", TestItemID: &a.ID}
	require.NoError(t, f.insert(t, f.links, link))
	require.NoError(t, f.insert(t, f.links, &oneToMany{FirstField: "y"}))

	// Filter by related record.
	recs, err := f.backend.ListAll(f.ctx, f.links, map[string]any{"test_item_id": a})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "x", recs[0].(*oneToMany).FirstField)

	recs, err = f.backend.ListAll(f.ctx, f.links, map[string]any{"test_item_id": nil})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "y", recs[0].(*oneToMany).FirstField)

	missing := int64(404)
	err = f.insert(t, f.links, &oneToMany{FirstField: "z", TestItemID: &missing})
	assert.ErrorIs(t, err, types.ErrIntegrity)

	// A referenced item cannot be deleted.
	err = f.backend.InTx(f.ctx, func(tx *Tx) error { return tx.Delete(f.ctx, f.items, a) })
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestBackend_UniqueViolation(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.insert(t, f.items, &item{Name: "Test"}))
	err := f.insert(t, f.items, &item{Name: "Test"})
	assert.ErrorIs(t, err, types.ErrIntegrity)
	assert.True(t, IsIntegrityError(err))

	n, err := f.backend.Count(f.ctx, f.items)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBackend_UpdateDelete(t *testing.T) {
	f := setup(t)

	a := &item{Name: "Test", Count: 1}
	require.NoError(t, f.insert(t, f.items, a))

	a.Name, a.Count = "Renamed", 5
	err := f.backend.InTx(f.ctx, func(tx *Tx) error {
		return tx.Update(f.ctx, f.items, a, []string{"count"})
	})
	require.NoError(t, err)

	got, err := f.backend.Get(f.ctx, f.items, a.ID)
	require.NoError(t, err)
	assert.Equal(t, &item{ID: a.ID, Name: "Test", Count: 5}, got)

	err = f.backend.InTx(f.ctx, func(tx *Tx) error { return tx.Delete(f.ctx, f.items, a) })
	require.NoError(t, err)

	err = f.backend.InTx(f.ctx, func(tx *Tx) error { return tx.Delete(f.ctx, f.items, a) })
	assert.ErrorIs(t, err, types.ErrNotFound)
	err = f.backend.InTx(f.ctx, func(tx *Tx) error { return tx.Update(f.ctx, f.items, a, nil) })
	assert.ErrorIs(t, err, types.ErrNotFound)
	err = f.backend.InTx(f.ctx, func(tx *Tx) error { return tx.Update(f.ctx, f.items, &item{}, nil) })
	assert.ErrorIs(t, err, types.ErrNotPersisted)
}

func TestBackend_RollbackOnError(t *testing.T) {
	f := setup(t)
	boom := errors.New("boom")

	err := f.backend.InTx(f.ctx, func(tx *Tx) error {
		if err := tx.Insert(f.ctx, f.items, &item{Name: "Gone"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := f.backend.Count(f.ctx, f.items)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackend_TemporalRoundTrip(t *testing.T) {
	f := setup(t)

	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	score := 0.25
	ev := &event{
		Title: "Launch",
		Day:   time.Date(2024, 5, 6, 0, 0, 0, 0, time.Local),
		At:    time.Date(0, 1, 1, 13, 30, 0, 0, time.Local),
		When:  &when,
		Done:  true,
		Score: &score,
	}
	require.NoError(t, f.insert(t, f.events, ev))

	got, err := f.backend.Get(f.ctx, f.events, ev.ID)
	require.NoError(t, err)
	g := got.(*event)
	assert.Equal(t, "Launch", g.Title)
	assert.True(t, ev.Day.Equal(g.Day), "day %v != %v", ev.Day, g.Day)
	assert.Equal(t, "13:30:00", g.At.Format("15:04:05"))
	require.NotNil(t, g.When)
	assert.True(t, when.Equal(*g.When), "when %v != %v", when, *g.When)
	assert.True(t, g.Done)
	require.NotNil(t, g.Score)
	assert.Equal(t, 0.25, *g.Score)
}

func TestDialect_CreateTable(t *testing.T) {
	items, err := schema.Describe(item{})
	require.NoError(t, err)
	links, err := schema.Describe(oneToMany{})
	require.NoError(t, err)
	refs := map[string]*schema.RecordType{"item": items}

	tests := []struct {
		backend string
		want    []string
	}{
		{types.BackendSQLite, []string{
			`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
			`"test_item_id" INTEGER`,
			`FOREIGN KEY ("test_item_id") REFERENCES "item" ("id")`,
		}},
		{types.BackendPostgres, []string{
			`"id" BIGSERIAL PRIMARY KEY`,
			`"test_item_id" BIGINT`,
		}},
		{types.BackendMySQL, []string{
			"`id` BIGINT AUTO_INCREMENT PRIMARY KEY",
			"`first_field` VARCHAR(255)",
			"FOREIGN KEY (`test_item_id`) REFERENCES `item` (`id`)",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			ddl := dialects[tt.backend].createTable(links, refs)
			for _, w := range tt.want {
				assert.Contains(t, ddl, w)
			}
			assert.NotContains(t, ddl, "test_item_id\" INTEGER NOT NULL")
		})
	}

	ddl := dialects[types.BackendSQLite].createTable(items, refs)
	assert.Contains(t, ddl, `"name" TEXT UNIQUE`)
}

func TestDialect_Placeholders(t *testing.T) {
	items, err := schema.Describe(item{})
	require.NoError(t, err)

	pg := dialects[types.BackendPostgres]
	assert.Equal(t, `INSERT INTO "item" ("name", "count") VALUES ($1, $2) RETURNING "id"`,
		pg.insert(items, []string{"name", "count"}))
	assert.Equal(t, `UPDATE "item" SET "count" = $1 WHERE "id" = $2`, pg.update(items, []string{"count"}))

	my := dialects[types.BackendMySQL]
	assert.Equal(t, "DELETE FROM `item` WHERE `id` = ?", my.delete(items))
	assert.True(t, strings.HasSuffix(my.selectAll(items, nil), "ORDER BY `id`"))
}

func TestIsIntegrityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("x")},
		{name: "wrapped sentinel", err: types.ErrIntegrity, want: true},
		{name: "postgres unique", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres fk", err: &pgconn.PgError{Code: "23503"}, want: true},
		{name: "postgres syntax", err: &pgconn.PgError{Code: "42601"}},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql parent row", err: &mysql.MySQLError{Number: 1451}, want: true},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIntegrityError(tt.err))
		})
	}
}

func TestDataSource_MySQL(t *testing.T) {
	dsn, err := dataSource(types.Config{Backend: types.BackendMySQL, DSN: "mysql://u:p@tcp(localhost:3306)/app"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "clientFoundRows=true")
}
