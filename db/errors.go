package db

import (
	"strings"

	"github.com/teranos/nrps/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed,
// either our wrapped ErrDatabaseClosed or the raw database/sql error.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	// database/sql returns its own unexported error value
	return strings.Contains(err.Error(), "database is closed")
}
