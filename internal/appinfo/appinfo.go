// Package appinfo provides application identity constants.
// These are used across packages for consistent naming.
package appinfo

const (
	// AppName is the display name of the application.
	AppName = "reconcile"

	// DirName is the directory name used for storing application data.
	// Location: %LOCALAPPDATA%/reconcile/ (Windows) or ~/.config/reconcile/ (other)
	DirName = "reconcile"

	// EnvPrefix prefixes every environment variable the application reads.
	EnvPrefix = "RECONCILE_"

	// MutexName is the Windows mutex name prefix for single instance control.
	// "Local\" scopes the mutex to the current user session.
	MutexName = "Local\\reconcile-"

	// LockFileName is the lock file name for single instance control.
	LockFileName = "reconcile.lock"

	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.yaml"

	// SecretsFileName is the secrets file name.
	SecretsFileName = "secrets.yaml"

	// EnvFileName is the optional dotenv file read from the data directory.
	EnvFileName = ".env"

	// DatabaseFileName is the SQLite staging database file name.
	DatabaseFileName = "staging.sqlite"
)
