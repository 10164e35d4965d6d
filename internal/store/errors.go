package store

import (
	"context"
	"errors"
	"strings"

	"github.com/framecut/timeline/internal/timeline"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("not found")

// errDuplicateKey marks a primary key or unique constraint violation.
var errDuplicateKey = errors.New("duplicate key")

// classify turns driver errors that are safe to retry into transient
// timeline errors and leaves everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeline.NewTransientError("storage deadline exceeded", err)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return timeline.NewTransientError("storage busy", err)
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Join(errDuplicateKey, err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed") {
			return errors.Join(errDuplicateKey, err)
		}
	}
	return err
}

// IsDuplicateKey reports whether err came from a uniqueness violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, errDuplicateKey)
}
