package datastore

import (
	"fmt"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/privacy"
	"github.com/TheCacophonyProject/Full-Noise/internal/secrets"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	mysqlConf := settings.Output.MySQL
	if mysqlConf.Username == "" || mysqlConf.Database == "" || mysqlConf.Host == "" || mysqlConf.Port == "" {
		return errors.Newf("mysql configuration requires username, database, host and port").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_mysql_config").
			Build()
	}
	return nil
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	// The password may live in a mounted secret file or behind a ${VAR}
	// reference rather than as plain text in the config.
	password, err := secrets.Resolve(store.Settings.Output.MySQL.PasswordFile, store.Settings.Output.MySQL.Password)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "resolve_mysql_password").
			Build()
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.Settings.Output.MySQL.Username, password,
		store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port,
		store.Settings.Output.MySQL.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: defaultQueryLogger(store.metrics)})
	if err != nil {
		activeQueryLog().Error("Failed to open MySQL database",
			"dsn", privacy.SanitizeDSN(dsn),
			"error", err)
		// The DSN carries credentials, so only safe fields go into the error context
		return dbError(err, "open_mysql", errors.PriorityCritical,
			"host", store.Settings.Output.MySQL.Host,
			"database", store.Settings.Output.MySQL.Database)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL", store.Settings.Output.MySQL.Host)
}
