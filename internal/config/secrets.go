package config

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/graaaaa/reconcile/internal/appinfo"
)

const (
	passwordLength  = 24
	passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultUsername = "admin"

	passwordFileName = "generated_password.txt"
)

// Environment variable names for secret overrides.
const (
	EnvWebhookURL        = appinfo.EnvPrefix + "WEBHOOK_URL"
	EnvBasicAuthUsername = appinfo.EnvPrefix + "BASIC_AUTH_USERNAME"
	EnvBasicAuthPassword = appinfo.EnvPrefix + "BASIC_AUTH_PASSWORD"
)

// SecretsLoadStatus indicates how secrets were loaded.
type SecretsLoadStatus int

const (
	// SecretsLoaded means secrets were successfully loaded from file.
	SecretsLoaded SecretsLoadStatus = iota
	// SecretsMissing means the secrets file doesn't exist (safe to create).
	SecretsMissing
	// SecretsFallback means there was an error reading/parsing (unsafe to overwrite).
	SecretsFallback
)

// Secret is a string type that masks its value when printed or logged.
// Use Value() to get the actual string value.
type Secret string

// String returns a masked value for logging safety.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString returns a masked value for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// LogValue keeps the value out of structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Value returns the actual secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s Secret) IsEmpty() bool {
	return s == ""
}

// Secrets holds sensitive application configuration.
// WARNING: Do not marshal this struct into logs; the encoders expose values.
type Secrets struct {
	SchemaVersion     int    `yaml:"schema_version"`
	WebhookURL        Secret `yaml:"webhook_url"`
	BasicAuthUsername string `yaml:"basic_auth_username"`
	BasicAuthPassword Secret `yaml:"basic_auth_password"`
}

// DefaultSecrets returns a Secrets with empty values.
func DefaultSecrets() Secrets {
	return Secrets{SchemaVersion: CurrentSchemaVersion}
}

// LoadSecretsFrom reads secrets from the specified path.
// Returns status to indicate whether it's safe to overwrite the file.
func LoadSecretsFrom(path string) (Secrets, SecretsLoadStatus, error) {
	sec := DefaultSecrets()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sec, SecretsMissing, nil
		}
		slog.Warn("failed to read secrets file, using defaults", "path", path, "error", err)
		return sec, SecretsFallback, fmt.Errorf("read secrets: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&sec); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("secrets file is corrupt, using defaults", "path", path, "error", err)
		return DefaultSecrets(), SecretsFallback, fmt.Errorf("decode secrets: %w", err)
	}

	if sec.SchemaVersion != CurrentSchemaVersion {
		slog.Warn("secrets schema version mismatch, using defaults",
			"got", sec.SchemaVersion,
			"expected", CurrentSchemaVersion,
		)
		return DefaultSecrets(), SecretsFallback, fmt.Errorf("schema mismatch: got %d", sec.SchemaVersion)
	}

	return sec, SecretsLoaded, nil
}

// SaveSecretsTo writes secrets to the specified path atomically.
func SaveSecretsTo(sec Secrets, path string) error {
	sec.SchemaVersion = CurrentSchemaVersion
	return writeYAMLAtomic(path, sec)
}

// ApplySecretEnvOverrides applies environment variable overrides to secrets.
func ApplySecretEnvOverrides(sec Secrets) Secrets {
	if v := os.Getenv(EnvWebhookURL); v != "" {
		sec.WebhookURL = Secret(v)
	}
	if v := os.Getenv(EnvBasicAuthUsername); v != "" {
		sec.BasicAuthUsername = v
	}
	if v := os.Getenv(EnvBasicAuthPassword); v != "" {
		sec.BasicAuthPassword = Secret(v)
	}
	return sec
}

// GeneratePassword generates a cryptographically secure random password.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate password: length must be positive")
	}
	b := make([]byte, length)
	charsetLen := big.NewInt(int64(len(passwordCharset)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = passwordCharset[idx.Int64()]
	}
	return string(b), nil
}

// EnsureLanAuth ensures Basic Auth credentials exist when LAN mode is enabled.
// If credentials were generated, generatedPassword contains the plaintext for one-time display.
func EnsureLanAuth(s *Secrets, lanEnabled bool) (updated bool, generatedPassword string, err error) {
	if !lanEnabled {
		return false, "", nil
	}

	if s.BasicAuthUsername == "" {
		s.BasicAuthUsername = defaultUsername
		updated = true
	}

	if s.BasicAuthPassword.IsEmpty() {
		pw, err := GeneratePassword(passwordLength)
		if err != nil {
			return false, "", err
		}
		s.BasicAuthPassword = Secret(pw)
		generatedPassword = pw
		updated = true
	}

	return updated, generatedPassword, nil
}

// WritePasswordFile writes the generated password next to the other data
// files with 0600 permissions and returns its path.
func WritePasswordFile(p Paths, username, password string) (string, error) {
	if err := p.Ensure(); err != nil {
		return "", err
	}
	path := filepath.Join(p.Dir, passwordFileName)
	content := fmt.Sprintf("Username: %s\nPassword: %s\n\nDelete this file after saving the credentials.\n", username, password)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write password file: %w", err)
	}
	return path, nil
}
