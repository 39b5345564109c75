package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
)

func mysqlSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Username = "fullnoise"
	settings.Output.MySQL.Password = "secret"
	settings.Output.MySQL.Database = "fullnoise"
	settings.Output.MySQL.Host = "localhost"
	settings.Output.MySQL.Port = "3306"
	return settings
}

func TestValidateMySQLConfig(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		require.NoError(t, validateMySQLConfig(mysqlSettings()))
	})

	mutations := []struct {
		name  string
		apply func(*conf.Settings)
	}{
		{"missing username", func(s *conf.Settings) { s.Output.MySQL.Username = "" }},
		{"missing database", func(s *conf.Settings) { s.Output.MySQL.Database = "" }},
		{"missing host", func(s *conf.Settings) { s.Output.MySQL.Host = "" }},
		{"missing port", func(s *conf.Settings) { s.Output.MySQL.Port = "" }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			settings := mysqlSettings()
			tt.apply(settings)
			require.Error(t, validateMySQLConfig(settings))
		})
	}
}

// Password resolution happens before any connection attempt, so these
// failure paths need no running server.
func TestMySQLOpenPasswordResolution(t *testing.T) {
	t.Run("unresolvable variable reference", func(t *testing.T) {
		settings := mysqlSettings()
		settings.Output.MySQL.Password = "${FULLNOISE_UNSET_TEST_PASSWORD}"

		store := &MySQLStore{Settings: settings}
		err := store.Open()
		require.Error(t, err)
		require.Contains(t, err.Error(), "FULLNOISE_UNSET_TEST_PASSWORD")
	})

	t.Run("missing password file", func(t *testing.T) {
		settings := mysqlSettings()
		settings.Output.MySQL.PasswordFile = filepath.Join(t.TempDir(), "no-such-secret")

		store := &MySQLStore{Settings: settings}
		err := store.Open()
		require.Error(t, err)
		require.Contains(t, err.Error(), "secret file not found")
	})
}
