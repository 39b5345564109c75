package datastore

import (
	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return errors.Newf("sqlite database path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_sqlite_config").
			Build()
	}
	return nil
}

// Open sets up the SQLite database connection
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Output.SQLite.Path

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: defaultQueryLogger(store.metrics)})
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical, "path", path)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}
