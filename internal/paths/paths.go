// Package paths resolves where vaultctl keeps its configuration, keypairs
// and account store.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName names the per-user directories.
const AppName = "hookvault"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "HOOKVAULT_CONFIG_DIR"
	EnvDataDir   = "HOOKVAULT_DATA_DIR"
)

// Names inside the configuration directory.
const (
	ConfigFileName = "config.yaml"
	KeysDirName    = "keys"
	KeyFileExt     = ".json"
)

// ErrInvalidKeyName is returned for key names that would escape the keys
// directory.
var ErrInvalidKeyName = errors.New("invalid key name")

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/hookvault (fallback ~/.config/hookvault)
// Others:  os.UserConfigDir()/hookvault
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific data directory.
//
// Linux:   $XDG_DATA_HOME/hookvault (fallback ~/.local/share/hookvault)
// Others:  os.UserConfigDir()/hookvault
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppName), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > HOOKVAULT_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > config.yaml value > HOOKVAULT_DATA_DIR > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	for _, v := range []string{flag, configYAMLValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return DefaultDataDir()
}

// KeyPath returns the file holding the named keypair. A name containing a
// path separator is taken as a path and returned as is.
func KeyPath(configDir, name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidKeyName
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return filepath.Abs(name)
	}
	return filepath.Join(configDir, KeysDirName, name+KeyFileExt), nil
}
