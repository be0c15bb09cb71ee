package commands

import (
	"database/sql"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/db"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
)

// openDatabase opens and migrates the results archive named by cfg.
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	path := cfg.GetDatabasePath()
	database, err := db.OpenWithMigrations(path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}
