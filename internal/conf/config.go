// config.go: settings for the Full-Noise visit service, loaded by viper
// from config.yaml and exposed through a package-level singleton.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var embeddedConfig embed.FS

// VisitsSettings controls how recordings are grouped into visits.
type VisitsSettings struct {
	Debug           bool          // true to enable debug mode
	Interval        time.Duration // maximum gap between recordings within a single visit
	AudioBaitWindow time.Duration // how far before a visit starts to look for audio bait events
	MaxVisits       int           // default number of visits returned per query
	QueryMax        int           // upper bound on recordings fetched per database page
}

// ReportSettings controls how report rows are rendered.
type ReportSettings struct {
	TimeZone string // IANA time zone for report date and time columns
	URLBase  string // base URL for links to recordings
}

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Debug   bool      // echo debug mode, verbose error responses
	Enabled bool      // serve the HTTP API
	Port    string    // listen port for the HTTP API
	Log     LogConfig // request log destination
}

// SentrySettings contains settings for error tracking, disabled by default.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error tracking (opt-in)
	Debug   bool   // true to enable Sentry SDK debug output
	DSN     string // Sentry DSN, empty uses the project default
}

// OutputSettings contains database connection settings.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // store recordings in a local sqlite file
		Path    string // sqlite database file
	}

	MySQL struct {
		Enabled      bool   // true to enable mysql database
		Username     string // username for mysql database
		Password     string // password for mysql database, supports ${VAR} expansion
		PasswordFile string // file holding the password, overrides password when set
		Database     string // database name for mysql database
		Host         string // host for mysql database
		Port         string // port for mysql database
	}
}

// Settings contains all configuration options for the Full-Noise application.
type Settings struct {
	Debug bool // verbose diagnostics, including per-statement query logging

	// Filled in at startup, never read from or written to the config file.
	Version   string `yaml:"-"` // release version from build info
	BuildDate string `yaml:"-"` // build date from build info
	SystemID  string `yaml:"-"` // anonymous system identifier for telemetry

	Main struct {
		Name      string    // name of this node, used to identify the source of reports
		TimeAs24h bool      // report times in 24 hour form instead of AM/PM
		Log       LogConfig // service log destination
	}

	Visits VisitsSettings // visit aggregation settings

	Report ReportSettings // report rendering settings

	WebServer WebServerSettings // HTTP API settings

	Output OutputSettings // database settings

	Sentry SentrySettings // error tracking settings
}

// LogConfig describes one log file destination.
type LogConfig struct {
	Enabled     bool         // whether this log destination is active
	Path        string       // log file path
	Rotation    RotationType // rotation scheme
	MaxSize     int64        // rotation threshold in bytes for RotationSize
	RotationDay string       // weekday name ("Sunday", "Monday", ...) for RotationWeekly
}

// RotationType names a log rotation scheme.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	current   *Settings
	loadOnce  sync.Once
	currentMu sync.RWMutex

	// configFileOverride pins viper to one explicit config file instead of
	// the default search paths.
	configFileOverride string
)

// SetConfigFile overrides config file discovery with an explicit path. It
// must be called before Load. An override pointing at a missing file makes
// Load fail instead of falling back to defaults.
func SetConfigFile(path string) {
	currentMu.Lock()
	defer currentMu.Unlock()
	configFileOverride = path
}

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the package singleton.
func Load() (*Settings, error) {
	currentMu.Lock()
	defer currentMu.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decoding config into settings: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}

	current = settings
	return current, nil
}

// initViper points viper at the config file, registers defaults and reads
// the file in. A missing file is not an error: a default one is written
// first so the next run finds it.
func initViper() error {
	viper.SetConfigType("yaml")

	if configFileOverride != "" {
		viper.SetConfigFile(configFileOverride)
	} else {
		viper.SetConfigName("config")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("locating config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return writeDefaultConfig()
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	return nil
}

// writeDefaultConfig writes the embedded commented template to the first
// default config path, then has viper read it back so the config file and
// the running settings cannot drift apart.
func writeDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("locating config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	template, err := fs.ReadFile(embeddedConfig, "config.yaml")
	if err != nil {
		return fmt.Errorf("reading embedded config template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, template, 0o644); err != nil {
		return fmt.Errorf("writing default config file: %w", err)
	}

	log.Printf("created default config at %s", configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the loaded settings, or nil before Load has run.
func GetSettings() *Settings {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Setting returns the settings singleton, loading it on first use.
func Setting() *Settings {
	loadOnce.Do(func() {
		if current == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath as YAML. The write goes
// through a temp file in the same directory followed by a rename, so a
// crash mid-write cannot leave a truncated config behind. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tempFile.Name()
	defer os.Remove(tmpName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("writing temporary config: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temporary config: %w", err)
	}

	if err := os.Rename(tmpName, configPath); err != nil {
		// Rename fails with a cross-device link error when the config
		// directory is a mount point, as bind-mounted config directories
		// sometimes are.
		if err := moveFile(tmpName, configPath); err != nil {
			return fmt.Errorf("replacing config file: %w", err)
		}
	}

	return nil
}
