package datastore

import (
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. 1 second accommodates migration batch queries which can
// take most of that on first startup.
const DefaultSlowQueryThreshold = 1 * time.Second

// defaultQueryLogger is the gorm.Config logger both drivers use: warn
// severity with the standard slow query threshold.
func defaultQueryLogger(metrics *Metrics) gormlogger.Interface {
	return newQueryLogger(DefaultSlowQueryThreshold, gormlogger.Warn, metrics)
}

// performAutoMigration brings the schema up to date for all entities.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Group{},
		&Device{},
		&Station{},
		&Recording{},
		&Track{},
		&TrackTag{},
		&Event{},
		&File{},
	); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		activeQueryLog().Debug("Database connection established",
			"db_type", dbType,
			"connection", connectionInfo)
	}
	return nil
}
