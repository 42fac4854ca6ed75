// Package paths locates the CLI's configuration and data directories.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under platform config and data roots.
const AppName = "multirow"

// Directory overrides read from the environment.
const (
	EnvConfigDir = "MULTIROW_CONFIG_DIR"
	EnvDataDir   = "MULTIROW_DATA_DIR"
)

// Files inside the configuration directory.
const (
	ConfigFileName = "config.yaml"
	SchemaFileName = "schema.yaml"
)

// DataDirName is the working-directory data location used when nothing
// else is configured.
const DataDirName = ".multirow"

// env holds the lookups that tests replace.
var env = struct {
	home      func() (string, error)
	configDir func() (string, error)
	getwd     func() (string, error)
	goos      string
}{
	home:      os.UserHomeDir,
	configDir: os.UserConfigDir,
	getwd:     os.Getwd,
	goos:      runtime.GOOS,
}

// xdgDir returns $xdgVar/multirow on Linux, falling back to
// ~/<fallback...>/multirow, and <UserConfigDir>/multirow elsewhere.
func xdgDir(xdgVar string, fallback ...string) (string, error) {
	if env.goos != "linux" {
		dir, err := env.configDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := env.home()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, AppName)...), nil
}

// DefaultConfigDir is $XDG_CONFIG_HOME/multirow on Linux (~/.config/multirow
// when unset) and the user config directory elsewhere.
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir is $XDG_DATA_HOME/multirow on Linux
// (~/.local/share/multirow when unset) and the user config directory
// elsewhere.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// firstAbs returns the absolute form of the first non-empty candidate.
func firstAbs(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		abs, err := filepath.Abs(c)
		return abs, true, err
	}
	return "", false, nil
}

// ResolveConfigDir picks the flag value, then MULTIROW_CONFIG_DIR, then the
// platform default.
func ResolveConfigDir(flag string) (string, error) {
	if dir, ok, err := firstAbs(flag, os.Getenv(EnvConfigDir)); ok {
		return dir, err
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the flag value, then the config file value, then
// MULTIROW_DATA_DIR, then .multirow in the working directory.
func ResolveDataDir(flag, configured string) (string, error) {
	if dir, ok, err := firstAbs(flag, configured, os.Getenv(EnvDataDir)); ok {
		return dir, err
	}
	cwd, err := env.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DataDirName), nil
}

// ConfigFile returns the config file path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// SchemaFile resolves the schema path. A relative configured path is taken
// relative to configDir; an empty one means schema.yaml in configDir.
func SchemaFile(configDir, configured string) string {
	switch {
	case configured == "":
		return filepath.Join(configDir, SchemaFileName)
	case filepath.IsAbs(configured):
		return configured
	default:
		return filepath.Join(configDir, configured)
	}
}
