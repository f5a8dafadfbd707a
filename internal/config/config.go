package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/graaaaa/reconcile/internal/appinfo"
	"github.com/graaaaa/reconcile/internal/atomicfile"
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/summary"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// Environment variable names for config overrides.
// Priority: Flags > Environment > .env file > Config File > Default
const (
	EnvPort              = appinfo.EnvPrefix + "PORT"
	EnvLanEnabled        = appinfo.EnvPrefix + "LAN_ENABLED"
	EnvWorkers           = appinfo.EnvPrefix + "WORKERS"
	EnvChunkSize         = appinfo.EnvPrefix + "CHUNK_SIZE"
	EnvNotifyOnCleanRuns = appinfo.EnvPrefix + "NOTIFY_ON_CLEAN_RUNS"
	EnvLogLevel          = appinfo.EnvPrefix + "LOG_LEVEL"
	EnvLogFormat         = appinfo.EnvPrefix + "LOG_FORMAT"
)

// Rules names the event types, key markers, and properties the classifier
// looks at.
type Rules struct {
	SubmittedEventType  string `yaml:"submitted_event_type"`
	CompletedEventType  string `yaml:"completed_event_type"`
	SubmittedKeyMarker  string `yaml:"submitted_key_marker"`
	CompletedKeyMarker  string `yaml:"completed_key_marker"`
	DisplayNameProperty string `yaml:"display_name_property"`
	CategoryProperty    string `yaml:"category_property"`
	UnitPriceProperty   string `yaml:"unit_price_property"`
}

// DefaultRules returns the rule names the classifier uses out of the box.
func DefaultRules() Rules {
	rs := dedupe.DefaultRuleSet()
	return Rules{
		SubmittedEventType:  rs.SubmittedEventType,
		CompletedEventType:  rs.CompletedEventType,
		SubmittedKeyMarker:  rs.SubmittedKeyMarker,
		CompletedKeyMarker:  rs.CompletedKeyMarker,
		DisplayNameProperty: rs.DisplayNameProperty,
		CategoryProperty:    rs.CategoryProperty,
		UnitPriceProperty:   rs.UnitPriceProperty,
	}
}

// RuleSet converts r for the classifier and resolver.
func (r Rules) RuleSet() dedupe.RuleSet {
	return dedupe.RuleSet{
		SubmittedEventType:  r.SubmittedEventType,
		CompletedEventType:  r.CompletedEventType,
		SubmittedKeyMarker:  r.SubmittedKeyMarker,
		CompletedKeyMarker:  r.CompletedKeyMarker,
		DisplayNameProperty: r.DisplayNameProperty,
		CategoryProperty:    r.CategoryProperty,
		UnitPriceProperty:   r.UnitPriceProperty,
	}
}

// Config holds non-sensitive application configuration.
type Config struct {
	SchemaVersion         int      `yaml:"schema_version"`
	Port                  int      `yaml:"port"`
	LanEnabled            bool     `yaml:"lan_enabled"`
	Workers               int      `yaml:"workers"`
	ChunkSize             int      `yaml:"chunk_size"`
	NotifyOnCleanRuns     bool     `yaml:"notify_on_clean_runs"`
	LogLevel              string   `yaml:"log_level"`
	LogFormat             string   `yaml:"log_format"`
	Rules                 Rules    `yaml:"rules"`
	SummaryExcludedFields []string `yaml:"summary_excluded_fields"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:         CurrentSchemaVersion,
		Port:                  8080,
		LanEnabled:            false,
		Workers:               runtime.NumCPU(),
		ChunkSize:             1000,
		NotifyOnCleanRuns:     false,
		LogLevel:              "info",
		LogFormat:             "text",
		Rules:                 DefaultRules(),
		SummaryExcludedFields: append([]string(nil), summary.DefaultExcludedFields...),
	}
}

// LoadConfigFrom reads config from the specified path. If the file doesn't
// exist it returns DefaultConfig. If it is unreadable, corrupt, or from
// another schema version, it returns DefaultConfig with a warning logged.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		slog.Warn("failed to read config file, using defaults", "path", path, "error", err)
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("config file is corrupt, using defaults", "path", path, "error", err)
		return DefaultConfig(), nil
	}

	if cfg.SchemaVersion != CurrentSchemaVersion {
		slog.Warn("config schema version mismatch, using defaults",
			"got", cfg.SchemaVersion,
			"expected", CurrentSchemaVersion,
		)
		return DefaultConfig(), nil
	}

	return normalizeConfig(cfg), nil
}

// normalizeConfig validates and normalizes config values.
func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	cfg.SchemaVersion = CurrentSchemaVersion

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfg.LogLevel = defaults.LogLevel
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		cfg.LogFormat = defaults.LogFormat
	}

	// Unset rule names fall back individually.
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&cfg.Rules.SubmittedEventType, defaults.Rules.SubmittedEventType)
	fill(&cfg.Rules.CompletedEventType, defaults.Rules.CompletedEventType)
	fill(&cfg.Rules.SubmittedKeyMarker, defaults.Rules.SubmittedKeyMarker)
	fill(&cfg.Rules.CompletedKeyMarker, defaults.Rules.CompletedKeyMarker)
	fill(&cfg.Rules.DisplayNameProperty, defaults.Rules.DisplayNameProperty)
	fill(&cfg.Rules.CategoryProperty, defaults.Rules.CategoryProperty)
	fill(&cfg.Rules.UnitPriceProperty, defaults.Rules.UnitPriceProperty)

	// An explicit empty list disables exclusion; an absent one keeps the default.
	if cfg.SummaryExcludedFields == nil {
		cfg.SummaryExcludedFields = defaults.SummaryExcludedFields
	}

	return cfg
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	cfg.SchemaVersion = CurrentSchemaVersion
	return writeYAMLAtomic(path, cfg)
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take priority over config file values.
func ApplyEnvOverrides(cfg Config) Config {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.Port = port
		}
	}

	if v := os.Getenv(EnvLanEnabled); v != "" {
		cfg.LanEnabled = parseBool(v)
	}

	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	if v := os.Getenv(EnvChunkSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChunkSize = n
		}
	}

	if v := os.Getenv(EnvNotifyOnCleanRuns); v != "" {
		cfg.NotifyOnCleanRuns = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}

	return normalizeConfig(cfg)
}

// parseBool parses a boolean from various string representations.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// writeYAMLAtomic writes v as YAML to path so the file is never in a
// partial state.
func writeYAMLAtomic(path string, v any) error {
	return atomicfile.Write(path, 0o700, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})
}
