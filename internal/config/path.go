// Package config provides configuration management for reconcile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/graaaaa/reconcile/internal/appinfo"
)

// EnvDataDir overrides the data directory location.
const EnvDataDir = appinfo.EnvPrefix + "DATA_DIR"

// DataDir returns the application data directory path.
// RECONCILE_DATA_DIR wins when set.
// On Windows: %LOCALAPPDATA%/reconcile/
// On other platforms: ~/.config/reconcile/ or equivalent
func DataDir() (string, error) {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir, nil
	}

	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("LOCALAPPDATA")
	}
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("get user config dir: %w", err)
		}
		base = dir
	}

	return filepath.Join(base, appinfo.DirName), nil
}

// Paths locates the files inside one data directory.
type Paths struct {
	Dir string
}

// NewPaths returns Paths for dir, or for DataDir() when dir is empty.
func NewPaths(dir string) (Paths, error) {
	if dir == "" {
		d, err := DataDir()
		if err != nil {
			return Paths{}, err
		}
		dir = d
	}
	return Paths{Dir: dir}, nil
}

// Ensure creates the data directory if it doesn't exist.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create data dir %q: %w", p.Dir, err)
	}
	return nil
}

// Config returns the path to config.yaml.
func (p Paths) Config() string { return filepath.Join(p.Dir, appinfo.ConfigFileName) }

// Secrets returns the path to secrets.yaml.
func (p Paths) Secrets() string { return filepath.Join(p.Dir, appinfo.SecretsFileName) }

// EnvFile returns the path to the optional .env file.
func (p Paths) EnvFile() string { return filepath.Join(p.Dir, appinfo.EnvFileName) }

// Lock returns the path to the lock file for single instance control.
func (p Paths) Lock() string { return filepath.Join(p.Dir, appinfo.LockFileName) }

// Database returns the path to the SQLite staging database.
func (p Paths) Database() string { return filepath.Join(p.Dir, appinfo.DatabaseFileName) }
