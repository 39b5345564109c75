package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getsentry/sentry-go"
)

// systemIDFile holds the anonymous installation identifier, stored
// alongside the config so it survives restarts and upgrades.
const systemIDFile = ".system_id"

// GenerateSystemID returns a fresh identifier in XXXX-XXXX-XXXX form.
// Hex digits keep it URL safe and case insensitive.
func GenerateSystemID() (string, error) {
	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading random bytes for system ID: %w", err)
	}
	id := strings.ToUpper(hex.EncodeToString(raw))
	return id[0:4] + "-" + id[4:8] + "-" + id[8:12], nil
}

// LoadOrCreateSystemID returns the persisted installation identifier,
// minting and saving a new one when the config directory has none yet.
// A corrupt or empty ID file is replaced rather than reported.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	idFile := filepath.Join(configDir, systemIDFile)
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); isValidSystemID(id) {
			return id, nil
		}
	}

	id, err := GenerateSystemID()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("saving system ID: %w", err)
	}

	// Runs before InitSentry, so this waits in the deferred queue until
	// telemetry comes up, and is dropped if it never does.
	CaptureMessage("new installation registered", sentry.LevelInfo, "telemetry")
	return id, nil
}

// isValidSystemID reports whether id is three hyphen-separated groups
// of four hex digits.
func isValidSystemID(id string) bool {
	groups := strings.Split(id, "-")
	if len(groups) != 3 {
		return false
	}
	for _, group := range groups {
		if len(group) != 4 {
			return false
		}
		if _, err := hex.DecodeString(group); err != nil {
			return false
		}
	}
	return true
}
