// Package secrets resolves credentials such as database passwords and
// telemetry DSNs from environment variables or mounted secret files, so
// config files never need to hold them in plain text.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// maxSecretFileSize caps secret file reads. Passwords and tokens are small,
// anything bigger is a misconfigured path.
const maxSecretFileSize = 64 * 1024

// ExpandString expands ${VAR} and ${VAR:-default} references against the
// environment. Literal strings pass through unchanged. A referenced variable
// that is unset and has no default is an error, not an empty credential.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string

	expanded := os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			// An explicit empty fallback is a valid choice.
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}

// ReadFile reads a secret from a file, typically a Docker or Kubernetes
// mounted secret under /run/secrets. Trailing newlines are trimmed because
// secret files almost always carry one.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty secret file path")
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	switch {
	case os.IsNotExist(err):
		return "", fmt.Errorf("secret file not found: %s", cleanPath)
	case err != nil:
		return "", fmt.Errorf("checking secret file %s: %w", cleanPath, err)
	case !info.Mode().IsRegular():
		return "", fmt.Errorf("secret path %s is not a regular file", cleanPath)
	case info.Size() > maxSecretFileSize:
		return "", fmt.Errorf("secret file %s too large (max %d bytes)", cleanPath, maxSecretFileSize)
	}

	// A secret readable by group or other defeats the point of using a file.
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		slog.Warn("Secret file has group or other permissions",
			"path", cleanPath,
			"perms", fmt.Sprintf("%04o", perm))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("reading secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", cleanPath)
	}

	return secret, nil
}

// Resolve picks the secret from the first available source. A file path wins
// over an inline value, and the inline value gets environment expansion.
// Both sources empty resolves to an empty secret without error, the caller
// decides whether that is acceptable.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	if value != "" {
		return ExpandString(value)
	}
	return "", nil
}
