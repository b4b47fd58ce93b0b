package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// dialect holds what differs between the supported databases.
type dialect struct {
	name      string
	driver    string // database/sql driver name
	quoteChar string
	numbered  bool // $1, $2 placeholders instead of ?
	returning bool // INSERT ... RETURNING instead of LastInsertId
	identity  string
	column    func(types.Field) string
}

var dialects = map[string]*dialect{
	types.BackendSQLite: {
		name:      types.BackendSQLite,
		driver:    "sqlite",
		quoteChar: `"`,
		identity:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		column: func(f types.Field) string {
			switch f.Kind {
			case types.KindInteger, types.KindForeignKey, types.KindBoolean:
				return "INTEGER"
			case types.KindFloat:
				return "REAL"
			}
			return "TEXT"
		},
	},
	types.BackendPostgres: {
		name:      types.BackendPostgres,
		driver:    "pgx",
		quoteChar: `"`,
		numbered:  true,
		returning: true,
		identity:  "BIGSERIAL PRIMARY KEY",
		column: func(f types.Field) string {
			switch f.Kind {
			case types.KindInteger, types.KindForeignKey:
				return "BIGINT"
			case types.KindFloat:
				return "DOUBLE PRECISION"
			case types.KindBoolean:
				return "BOOLEAN"
			}
			return "TEXT"
		},
	},
	types.BackendMySQL: {
		name:      types.BackendMySQL,
		driver:    "mysql",
		quoteChar: "`",
		identity:  "BIGINT AUTO_INCREMENT PRIMARY KEY",
		column: func(f types.Field) string {
			switch f.Kind {
			case types.KindInteger, types.KindForeignKey:
				return "BIGINT"
			case types.KindFloat:
				return "DOUBLE"
			case types.KindBoolean:
				return "BOOLEAN"
			case types.KindLongText:
				return "TEXT"
			case types.KindDate, types.KindTime, types.KindDateTime:
				return "VARCHAR(40)"
			}
			// TEXT columns cannot carry a UNIQUE index without a prefix length.
			return "VARCHAR(255)"
		},
	},
}

func (d *dialect) quote(ident string) string {
	return d.quoteChar + strings.ReplaceAll(ident, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

// placeholder returns the n-th (1-based) bind parameter.
func (d *dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// createTable renders the CREATE TABLE statement of rt. refs resolves the
// identity column of referenced tables.
func (d *dialect) createTable(rt *schema.RecordType, refs map[string]*schema.RecordType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.quote(rt.Table))
	fmt.Fprintf(&b, "\t%s %s", d.quote(rt.IDColumn()), d.identity)
	var constraints []string
	for _, f := range rt.Fields() {
		fmt.Fprintf(&b, ",\n\t%s %s", d.quote(f.Column), d.column(f))
		if f.NotNull {
			b.WriteString(" NOT NULL")
		}
		if f.Unique {
			b.WriteString(" UNIQUE")
		}
		if f.Kind == types.KindForeignKey {
			refID := "id"
			if target, ok := refs[f.Ref]; ok {
				refID = target.IDColumn()
			}
			constraints = append(constraints, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				d.quote(f.Column), d.quote(f.Ref), d.quote(refID)))
		}
	}
	for _, c := range constraints {
		b.WriteString(",\n\t" + c)
	}
	b.WriteString("\n)")
	return b.String()
}

// selectAll renders a SELECT of every column of rt. where holds the
// already-rendered conditions.
func (d *dialect) selectAll(rt *schema.RecordType, where []string) string {
	cols := []string{d.quote(rt.IDColumn())}
	for _, f := range rt.Fields() {
		cols = append(cols, d.quote(f.Column))
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), d.quote(rt.Table))
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY " + d.quote(rt.IDColumn())
}

func (d *dialect) insert(rt *schema.RecordType, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
		params[i] = d.placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(rt.Table), strings.Join(quoted, ", "), strings.Join(params, ", "))
	if d.returning {
		q += " RETURNING " + d.quote(rt.IDColumn())
	}
	return q
}

func (d *dialect) update(rt *schema.RecordType, columns []string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = d.quote(c) + " = " + d.placeholder(i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.quote(rt.Table), strings.Join(sets, ", "), d.quote(rt.IDColumn()), d.placeholder(len(columns)+1))
}

func (d *dialect) delete(rt *schema.RecordType) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.quote(rt.Table), d.quote(rt.IDColumn()), d.placeholder(1))
}
