// Package shared provides helpers used by more than one storage component.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteCode returns the primary result code of a driver error, or 0.
// Extended codes (e.g. SQLITE_BUSY_SNAPSHOT) are reduced to their primary code.
func SQLiteCode(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() & 0xff
	}
	return 0
}

// IsSQLiteConflictError reports lock contention (SQLITE_BUSY or SQLITE_LOCKED),
// the only write failures worth retrying. Errors that lost their driver type
// while being wrapped are matched by message.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	switch SQLiteCode(err) {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
