// conf/utils.go config file discovery and filesystem helpers
package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order. When one of them already holds a config.yaml only
// that directory is returned, so a user config is never shadowed by a
// system-wide one.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "locate_home_directory").
			Build()
	}

	dirs := []string{
		filepath.Join(homeDir, ".config", "fullnoise"),
		"/etc/fullnoise",
	}
	if runtime.GOOS == "windows" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategorySystem).
				Context("operation", "locate_executable").
				Build()
		}
		dirs = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", "fullnoise"),
		}
	}

	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			return []string{dir}, nil
		}
	}
	return dirs, nil
}

// containerMarkers are files whose presence identifies a container
// runtime: /.dockerenv for Docker, /run/.containerenv for Podman.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// RunningInContainer reports whether the process appears to run inside a
// container. Telemetry tags events with it so host-only problems are
// distinguishable from containerised ones.
func RunningInContainer() bool {
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	// systemd-nspawn and some runtimes advertise themselves here instead
	if value, ok := os.LookupEnv("container"); ok && value != "" {
		return true
	}

	// Last resort: the cgroup hierarchy names the runtime on older setups
	cgroups, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	return strings.Contains(string(cgroups), "docker") ||
		strings.Contains(string(cgroups), "podman")
}

// moveFile renames src to dst, falling back to copy-and-delete when the
// two paths sit on different filesystems, as bind-mounted config
// directories sometimes do.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	// A close error here means the copy may not have hit the disk, so
	// the source must survive.
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	return os.Remove(src)
}
