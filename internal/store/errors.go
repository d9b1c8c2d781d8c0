package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStorageUnavailable is wrapped by every error returned from a Repository
// when the persistence layer is unreachable or rejects a read or write.
var ErrStorageUnavailable = errors.New("storage unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// IsBusy reports whether err is a SQLite lock conflict (SQLITE_BUSY or
// "database is locked"). Such errors are not retried; callers only use this
// to pick a log level.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
