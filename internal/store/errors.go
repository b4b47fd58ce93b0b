package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// MySQL error numbers of constraint violations.
var mysqlIntegrityErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1216: true, // cannot add child row
	1217: true, // cannot delete parent row
	1451: true, // cannot delete or update parent row
	1452: true, // cannot add or update child row
}

// IsIntegrityError reports whether err is a constraint violation raised by
// one of the supported databases: uniqueness, foreign key, not null.
func IsIntegrityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, types.ErrIntegrity) {
		return true
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlIntegrityErrors[mysqlErr.Number]
	}

	return false
}

// classify wraps integrity violations with types.ErrIntegrity so callers
// can test for them without knowing the driver.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsIntegrityError(err) && !errors.Is(err, types.ErrIntegrity) {
		return fmt.Errorf("%w: %w", types.ErrIntegrity, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
