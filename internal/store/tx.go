package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Tx is one transactional scope opened by Backend.InTx.
type Tx struct {
	tx      *sql.Tx
	dialect *dialect
}

// Insert adds rec as a new row of rt and stores the generated identity in
// rec.
func (t *Tx) Insert(ctx context.Context, rt *schema.RecordType, rec any) error {
	fields := rt.Fields()
	columns := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		v, err := rt.Get(rec, f.Column)
		if err != nil {
			return err
		}
		columns[i] = f.Column
		args[i] = toDB(f, v)
	}

	q := t.dialect.insert(rt, columns)
	var id int64
	if t.dialect.returning {
		if err := t.tx.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return classify("inserting into "+rt.Table, err)
		}
	} else {
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return classify("inserting into "+rt.Table, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading identity of %s: %w", rt.Table, err)
		}
	}
	return rt.SetID(rec, id)
}

// Update writes columns of rec to its row. nil columns means every
// non-identity column. Returns ErrNotPersisted when rec has no identity and
// ErrNotFound when its row is gone.
func (t *Tx) Update(ctx context.Context, rt *schema.RecordType, rec any, columns []string) error {
	id, err := rt.ID(rec)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotPersisted, rt.Table)
	}
	if columns == nil {
		for _, f := range rt.Fields() {
			columns = append(columns, f.Column)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	args := make([]any, 0, len(columns)+1)
	for _, c := range columns {
		f, ok := rt.Field(c)
		if !ok {
			return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, rt.Table, c)
		}
		v, err := rt.Get(rec, c)
		if err != nil {
			return err
		}
		args = append(args, toDB(f, v))
	}
	args = append(args, id)

	res, err := t.tx.ExecContext(ctx, t.dialect.update(rt, columns), args...)
	if err != nil {
		return classify("updating "+rt.Table, err)
	}
	return expectRow(res, rt, id)
}

// Delete removes the row of rec. Returns ErrNotPersisted when rec has no
// identity and ErrNotFound when its row is already gone.
func (t *Tx) Delete(ctx context.Context, rt *schema.RecordType, rec any) error {
	id, err := rt.ID(rec)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotPersisted, rt.Table)
	}
	res, err := t.tx.ExecContext(ctx, t.dialect.delete(rt), id)
	if err != nil {
		return classify("deleting from "+rt.Table, err)
	}
	return expectRow(res, rt, id)
}

// Get reads the row of rt with identity id inside the transaction.
func (t *Tx) Get(ctx context.Context, rt *schema.RecordType, id int64) (any, error) {
	q := t.dialect.selectAll(rt, []string{t.dialect.quote(rt.IDColumn()) + " = " + t.dialect.placeholder(1)})
	recs, err := queryRecords(ctx, t.tx, rt, q, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %d", types.ErrNotFound, rt.Table, id)
	}
	return recs[0], nil
}

func expectRow(res sql.Result, rt *schema.RecordType, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows of %s: %w", rt.Table, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", types.ErrNotFound, rt.Table, id)
	}
	return nil
}
