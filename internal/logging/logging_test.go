package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
)

// decodeLine unpacks one JSON log line.
func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("log line %q is not JSON: %v", line, err)
	}
	return record
}

func TestSetOutputSplitsStructuredAndHuman(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	t.Cleanup(func() { SetOutput(io.Discard, io.Discard) })

	slog.Info("engine started", "device", 4)
	HumanReadable().Warn("disk nearly full")

	record := decodeLine(t, structured.String())
	if record["msg"] != "engine started" {
		t.Errorf("structured msg = %v, want engine started", record["msg"])
	}
	if record["level"] != "INFO" {
		t.Errorf("structured level = %v, want INFO", record["level"])
	}

	out := human.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="disk nearly full"`) {
		t.Errorf("human output = %q, want text formatted warning", out)
	}
	if strings.Contains(structured.String(), "disk nearly full") {
		t.Error("human logger leaked into the structured stream")
	}
}

func TestForServiceFollowsDefault(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	t.Cleanup(func() { SetOutput(io.Discard, io.Discard) })

	ForService("visits").Info("pass complete")
	record := decodeLine(t, structured.String())
	if record["service"] != "visits" {
		t.Errorf("service attribute = %v, want visits", record["service"])
	}

	// CLI commands install the human logger as the default; services
	// built afterwards follow it.
	slog.SetDefault(HumanReadable())
	ForService("report").Info("rows written")
	if !strings.Contains(human.String(), "service=report") {
		t.Errorf("human output = %q, want service=report attribute", human.String())
	}
}

func TestTraceLevelRendersAsTRACE(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newStructuredHandler(&buf, LevelTrace))

	logger.Log(t.Context(), LevelTrace, "query ran")
	record := decodeLine(t, buf.String())
	if record["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", record["level"])
	}

	// Standard levels keep their usual labels.
	buf.Reset()
	logger.Debug("cache miss")
	record = decodeLine(t, buf.String())
	if record["level"] != "DEBUG" {
		t.Errorf("level = %v, want DEBUG", record["level"])
	}
}

func TestDefaultLevelSuppressesDebugAndTrace(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	t.Cleanup(func() { SetOutput(io.Discard, io.Discard) })

	slog.Debug("page fetched")
	slog.Default().Log(t.Context(), LevelTrace, "statement ran")

	if structured.Len() != 0 {
		t.Errorf("Info-level logger emitted %q", structured.String())
	}
}

func TestSetLevelAppliesToBothLoggers(t *testing.T) {
	t.Cleanup(func() { SetOutput(io.Discard, io.Discard) })

	SetLevel(slog.LevelDebug)
	if !structuredLogger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("structured logger rejects debug after SetLevel(Debug)")
	}
	if !humanReadableLogger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("human logger rejects debug after SetLevel(Debug)")
	}

	SetLevel(slog.LevelInfo)
	if structuredLogger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("structured logger accepts debug after SetLevel(Info)")
	}
}

func TestNewFileLoggerWritesTaggedJSON(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	settings := &conf.Settings{}
	settings.Main.Log.Rotation = conf.RotationDaily
	settings.Main.Log.MaxSize = 1048576
	settings.Visits.Interval = time.Minute
	settings.Visits.AudioBaitWindow = time.Hour
	settings.Visits.MaxVisits = 100
	settings.Visits.QueryMax = 1000
	settings.Report.TimeZone = "UTC"
	settings.WebServer.Port = "8080"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "test.db"

	if err := conf.SaveYAMLConfig(configPath, settings); err != nil {
		t.Fatalf("SaveYAMLConfig() error: %v", err)
	}
	conf.SetConfigFile(configPath)
	t.Cleanup(func() { conf.SetConfigFile("") })
	if _, err := conf.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// The logs directory does not exist yet; NewFileLogger creates it.
	logPath := filepath.Join(dir, "logs", "datastore.log")
	logger, closeLog, err := NewFileLogger(logPath, "datastore", slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}

	logger.Info("connection established", "dialect", "sqlite")
	logger.Log(t.Context(), LevelTrace, "statement ran")
	if err := closeLog(); err != nil {
		t.Fatalf("closing log writer: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (trace suppressed at Info)", len(lines))
	}
	record := decodeLine(t, lines[0])
	if record["service"] != "datastore" {
		t.Errorf("service = %v, want datastore", record["service"])
	}
	if record["dialect"] != "sqlite" {
		t.Errorf("dialect = %v, want sqlite", record["dialect"])
	}
}
