// Package repository holds the MySQL access code for accounts, roles and the
// refresh token ledger. Repositories return the sentinel errors below; the
// service layer decides how each one surfaces to callers.
package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("not found")

	// ErrEmailExists is returned when an account with the same email exists.
	ErrEmailExists = errors.New("email already exists")

	// ErrRoleExists is returned when a role with the same name exists.
	ErrRoleExists = errors.New("role already exists")

	// ErrRoleInUse is returned when deleting a role that accounts still reference.
	ErrRoleInUse = errors.New("role is referenced by accounts")

	// ErrStaleToken is returned when a ledger record was revoked or expired
	// between lookup and rotation.
	ErrStaleToken = errors.New("refresh token no longer usable")
)

// MySQL error numbers we translate.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
)

// isDuplicate reports unique-key violations from MySQL (1062) and SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// isReferenced reports foreign-key violations on delete.
func isReferenced(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlRowIsReferenced
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// dbTime normalises timestamps the way DATETIME columns store them.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }
