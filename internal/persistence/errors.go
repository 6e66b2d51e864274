package persistence

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate key")

	// ErrStateConflict is returned when an article is not in the state a transition expects
	ErrStateConflict = errors.New("article state conflict")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// mapError converts driver errors into package sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) && !errors.Is(err, ErrDuplicate) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
