// Package store persists records in a relational database through
// database/sql. It speaks SQLite (the default, pure Go), PostgreSQL and
// MySQL, and maps record types described by internal/schema onto tables
// with one identity column each.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// DatabaseFile is the SQLite file created in the data directory.
const DatabaseFile = "crudforms.db"

// Backend is a store session factory bound to one database. The zero value
// is detached; call Attach before use.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dialect  *dialect
}

// NewBackend creates a detached backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the database described by config.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(ctx context.Context, config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	d := dialects[config.Backend]
	dsn, err := dataSource(config)
	if err != nil {
		return err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return fmt.Errorf("opening %s: %w", d.name, err)
	}
	if d.name == types.BackendSQLite {
		// One writer at a time; also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return fmt.Errorf("enabling foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connecting to %s: %w", d.name, err)
	}

	b.db = db
	b.dialect = d
	b.config = config
	b.attached = true
	return nil
}

// dataSource builds the driver DSN of config.
func dataSource(config types.Config) (string, error) {
	switch config.Backend {
	case types.BackendSQLite:
		if config.DSN != "" {
			return config.DSN, nil
		}
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return "", err
		}
		return "file:" + filepath.Join(dataDir, DatabaseFile) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case types.BackendMySQL:
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(config.DSN, "mysql://"))
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		// Report matched rather than changed rows, so an update that
		// changes nothing is not mistaken for a missing row.
		cfg.ClientFoundRows = true
		return cfg.FormatDSN(), nil
	}
	return config.DSN, nil
}

// Detach closes the database. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Config returns the configuration the backend was attached with.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Path returns the SQLite database file, or "" for other backends and
// explicit DSNs.
func (b *Backend) Path() string {
	c := b.Config()
	if c.Backend != types.BackendSQLite || c.DSN != "" {
		return ""
	}
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DatabaseFile)
}

// CreateTables creates the tables of rts that do not exist yet. Tables are
// created in foreign key order as given; use schema.Registry.All for it.
func (b *Backend) CreateTables(ctx context.Context, rts ...*schema.RecordType) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	refs := make(map[string]*schema.RecordType, len(rts))
	for _, rt := range rts {
		refs[rt.Table] = rt
	}
	for _, rt := range rts {
		if _, err := b.db.ExecContext(ctx, b.dialect.createTable(rt, refs)); err != nil {
			return fmt.Errorf("creating table %s: %w", rt.Table, err)
		}
	}
	return nil
}

// ListAll returns the records of rt matching filter, in identity order.
// filter maps columns to required values; nil matches NULL. An empty filter
// matches all records.
func (b *Backend) ListAll(ctx context.Context, rt *schema.RecordType, filter map[string]any) ([]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	columns := make([]string, 0, len(filter))
	for c := range filter {
		columns = append(columns, c)
	}
	slices.Sort(columns)

	var (
		where []string
		args  []any
	)
	for _, c := range columns {
		f, err := filterField(rt, c)
		if err != nil {
			return nil, err
		}
		want := filter[c]
		if f.Kind == types.KindForeignKey {
			if id, ok := schema.Identity(want); ok {
				want = id
			}
		}
		v, err := schema.Normalize(f.Kind, want)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c, err)
		}
		if v == nil {
			where = append(where, b.dialect.quote(c)+" IS NULL")
			continue
		}
		args = append(args, toDB(f, v))
		where = append(where, b.dialect.quote(c)+" = "+b.dialect.placeholder(len(args)))
	}

	return queryRecords(ctx, b.db, rt, b.dialect.selectAll(rt, where), args...)
}

func filterField(rt *schema.RecordType, column string) (types.Field, error) {
	if column == rt.IDColumn() {
		return types.Field{Column: column, Kind: types.KindInteger}, nil
	}
	f, ok := rt.Field(column)
	if !ok {
		return types.Field{}, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, rt.Table, column)
	}
	return f, nil
}

// Get returns the record of rt with identity id.
// Returns ErrNotFound if there is none.
func (b *Backend) Get(ctx context.Context, rt *schema.RecordType, id int64) (any, error) {
	recs, err := b.ListAll(ctx, rt, map[string]any{rt.IDColumn(): id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %d", types.ErrNotFound, rt.Table, id)
	}
	return recs[0], nil
}

// Count returns the number of records of rt.
func (b *Backend) Count(ctx context.Context, rt *schema.RecordType) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	var n int
	q := "SELECT COUNT(*) FROM " + b.dialect.quote(rt.Table)
	if err := b.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", rt.Table, err)
	}
	return n, nil
}

// InTx runs fn in one transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Integrity violations, whether raised by a
// statement or at commit, wrap types.ErrIntegrity.
func (b *Backend) InTx(ctx context.Context, fn func(*Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, dialect: b.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRecords(ctx context.Context, q querier, rt *schema.RecordType, query string, args ...any) ([]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", rt.Table, err)
	}
	defer rows.Close()

	fields := rt.Fields()
	raw := make([]any, len(fields)+1)
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var recs []any
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", rt.Table, err)
		}
		rec, err := buildRecord(rt, fields, raw)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", rt.Table, err)
	}
	return recs, nil
}

func buildRecord(rt *schema.RecordType, fields []types.Field, raw []any) (any, error) {
	rec := rt.New()
	id, err := fromDB(types.Field{Column: rt.IDColumn(), Kind: types.KindInteger}, raw[0])
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errors.New("row without identity in " + rt.Table)
	}
	if err := rt.SetID(rec, id.(int64)); err != nil {
		return nil, err
	}
	for i, f := range fields {
		v, err := fromDB(f, raw[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rt.Table, err)
		}
		if v == nil && f.Kind == types.KindForeignKey && !f.Nullable {
			// Leave the zero identity; the row violates its own schema.
			continue
		}
		if err := rt.Set(rec, f.Column, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
