package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/cmd"
	"github.com/TheCacophonyProject/Full-Noise/internal/buildinfo"
	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
	"github.com/TheCacophonyProject/Full-Noise/internal/telemetry"
)

// version and buildDate are populated at build time:
//
//	go build -ldflags "-X main.version=v1.2.3 -X main.buildDate=2024-05-01T10:00:00Z"
var (
	version   string
	buildDate string
)

func main() {
	// The config override has to be known before viper reads anything, so
	// peek at the raw arguments instead of waiting for cobra to parse them.
	if path := configFlagValue(os.Args[1:]); path != "" {
		conf.SetConfigFile(path)
	}

	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.Init()

	build := buildinfo.NewContext(version, buildDate, systemID())
	settings.Version = build.GetVersion()
	settings.BuildDate = build.GetBuildDate()
	settings.SystemID = build.GetSystemID()

	if err := telemetry.InitSentry(settings); err != nil {
		log.Printf("Error initializing telemetry: %v", err)
	}

	err = cmd.RootCommand(settings).Execute()
	if err != nil {
		// Enhanced errors already reported themselves when built.
		var ee *errors.EnhancedError
		if !errors.As(err, &ee) {
			telemetry.CaptureError(err, "main")
		}
	}
	telemetry.Flush(3 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}

// systemID loads or creates the persistent anonymous identifier attached to
// telemetry reports.
func systemID() string {
	configPaths, err := conf.GetDefaultConfigPaths()
	if err != nil {
		return ""
	}
	id, err := telemetry.LoadOrCreateSystemID(configPaths[0])
	if err != nil {
		return ""
	}
	return id
}

// configFlagValue extracts the value of the --config flag from raw
// arguments, accepting both "--config path" and "--config=path".
func configFlagValue(args []string) string {
	for i, arg := range args {
		if arg == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			continue
		}
		if value, ok := strings.CutPrefix(arg, "--config="); ok {
			return value
		}
	}
	return ""
}
