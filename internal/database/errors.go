package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	// ErrReferenceMissing means a row the insert points at no longer exists
	ErrReferenceMissing = errors.New("referenced row does not exist")

	// ErrAlertNotFound means the alert does not exist or is already resolved
	ErrAlertNotFound = errors.New("reconciliation alert not found or already resolved")
)

// pgErrorCode extracts the SQLSTATE from either driver's error type
func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	return err != nil && pgErrorCode(err) == pgUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign key violation
func IsForeignKeyViolation(err error) bool {
	return err != nil && pgErrorCode(err) == pgForeignKeyViolation
}
