package sqlstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"calsync/internal/store"
)

// classify maps driver failures that no run can recover from onto the store
// sentinels and leaves everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", store.ErrAccessDenied, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", "28P01", "28000":
			return fmt.Errorf("%w: %s", store.ErrAccessDenied, pgErr.Message)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
			return fmt.Errorf("%w: %v", store.ErrAccessDenied, err)
		case sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%w: %v", store.ErrNoStorage, err)
		}
	}
	return err
}
