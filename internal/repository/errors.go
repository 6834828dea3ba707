// Package repository holds the MySQL data access code.  Repositories map
// driver errors onto the booking core's error kinds so that handlers can
// classify failures with errors.Is regardless of the storage backend.
package repository

import (
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/spacebook/internal/booking"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.  Handlers translate it into 403.
var ErrForbidden = booking.ErrUnauthorized

// ErrConflict is returned when a write collides with existing state
// (duplicate key, lock wait, deadlock).  Handlers translate it into 409.
var ErrConflict = booking.ErrConflict

// MySQL server error numbers that mean "another transaction got there
// first".
const (
    mysqlDuplicateEntry  = 1062
    mysqlLockWaitTimeout = 1205
    mysqlDeadlock        = 1213
)

// classify wraps err with the booking error kind it corresponds to.  what
// names the missing entity for ErrNoRows.
func classify(err error, what string) error {
    if err == nil {
        return nil
    }
    if errors.Is(err, sql.ErrNoRows) {
        return fmt.Errorf("%w: %s", booking.ErrNotFound, what)
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlock:
            return fmt.Errorf("%w: %s: %s", ErrConflict, what, me.Message)
        }
    }
    return err
}
