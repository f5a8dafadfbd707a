package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/appinfo"
	"github.com/graaaaa/reconcile/internal/config"
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/event"
	"github.com/graaaaa/reconcile/internal/ingest"
	"github.com/graaaaa/reconcile/internal/singleinstance"
	"github.com/graaaaa/reconcile/internal/store"
	"github.com/graaaaa/reconcile/internal/summary"
)

// env is the state every command shares, resolved once before it runs.
type env struct {
	paths         config.Paths
	cfg           config.Config
	secrets       config.Secrets
	secretsStatus config.SecretsLoadStatus
	logger        *slog.Logger
	out           io.Writer
}

var (
	flagConfig    string
	flagDataDir   string
	flagLogLevel  string
	flagLogFormat string
	flagWorkers   int

	current *env
)

var rootCmd = &cobra.Command{
	Use:   appinfo.AppName,
	Short: "Reconcile duplicate events in analytics exports",
	Long: `reconcile groups exported analytics events by insert id, classifies every
duplicate group, and resolves the groups it can. Groups it cannot resolve are
written out for manual review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		current = e
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default <data-dir>/config.yaml)")
	pf.StringVar(&flagDataDir, "data-dir", "", "data directory (default $"+config.EnvDataDir+" or the user config dir)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	pf.IntVar(&flagWorkers, "workers", 0, "groups analyzed concurrently (default: number of CPUs)")
}

// loadEnv layers configuration: defaults, config file, .env, environment,
// then flags.
func loadEnv(cmd *cobra.Command) (*env, error) {
	paths, err := config.NewPaths(flagDataDir)
	if err != nil {
		return nil, err
	}

	if err := config.LoadDotEnv(paths.EnvFile()); err != nil {
		return nil, fmt.Errorf("load %s: %w", paths.EnvFile(), err)
	}

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = paths.Config()
	}
	cfg, err := config.LoadConfigFrom(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg = config.ApplyEnvOverrides(cfg)

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("workers") && flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	sec, status, err := config.LoadSecretsFrom(paths.Secrets())
	if err != nil {
		logger.Warn("secrets not loaded", "error", err)
	}
	sec = config.ApplySecretEnvOverrides(sec)

	return &env{
		paths:         paths,
		cfg:           cfg,
		secrets:       sec,
		secretsStatus: status,
		logger:        logger,
		out:           cmd.OutOrStdout(),
	}, nil
}

// newLogger builds the process logger.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newAnalyzer builds an Analyzer from the configured rules.
func (e *env) newAnalyzer(observer func(dedupe.Analysis)) (*dedupe.Analyzer, error) {
	rs := e.cfg.Rules.RuleSet()
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return dedupe.NewAnalyzer(
		dedupe.WithClassifier(dedupe.NewClassifier(dedupe.WithRuleSet(rs))),
		dedupe.WithResolver(dedupe.NewResolver(rs)),
		dedupe.WithWorkers(e.cfg.Workers),
		dedupe.WithObserver(observer),
		dedupe.WithLogger(e.logger),
	), nil
}

// openStore opens the staging database. Writers take the data directory
// lock first so two ingests cannot interleave.
func (e *env) openStore(ctx context.Context, write bool) (*store.Store, func(), error) {
	if err := e.paths.Ensure(); err != nil {
		return nil, nil, err
	}

	release := func() {}
	if write {
		r, err := singleinstance.Acquire(e.paths.Lock())
		if err != nil {
			return nil, nil, err
		}
		release = r
	}

	db, err := store.Open(e.paths.Database(), store.WithLogger(e.logger))
	if err != nil {
		release()
		return nil, nil, err
	}

	if write {
		if _, err := db.VacuumIfNeeded(ctx); err != nil {
			e.logger.Warn("vacuum failed", "error", err)
		}
	}

	return db, func() {
		if err := db.Close(); err != nil {
			e.logger.Warn("close store", "error", err)
		}
		release()
	}, nil
}

// loadRecords reads records from an export directory, or from the staging
// database when dir is empty. It returns a description of the source.
func (e *env) loadRecords(ctx context.Context, dir string) ([]event.Record, string, error) {
	if dir != "" {
		records, err := ingest.ReadDir(dir)
		if err != nil {
			return nil, "", err
		}
		return records, dir, nil
	}

	db, closeDB, err := e.openStore(ctx, false)
	if err != nil {
		return nil, "", err
	}
	defer closeDB()

	records, err := db.LoadRecords(ctx)
	if err != nil {
		return nil, "", err
	}
	return records, stagingSource, nil
}

// stagingSource is the Run.Source of runs analyzed from the database.
const stagingSource = "staging database"

// analyzed is a grouped and analyzed record set.
type analyzed struct {
	partition dedupe.Partition
	analyses  []dedupe.Analysis
	summary   summary.Report
}

// analyzeRecords groups records and analyzes every duplicate group.
func (e *env) analyzeRecords(ctx context.Context, records []event.Record) (analyzed, error) {
	p := dedupe.GroupRecords(records)
	if len(p.Missing) > 0 {
		e.logger.Warn("records without insert_id skipped", "count", len(p.Missing))
	}

	sum := summary.New(e.cfg.SummaryExcludedFields)
	sum.SetPartition(p)

	analyzer, err := e.newAnalyzer(sum.Observe)
	if err != nil {
		return analyzed{}, err
	}
	analyses, err := analyzer.Run(ctx, p.Duplicates)
	if err != nil {
		return analyzed{}, err
	}
	return analyzed{partition: p, analyses: analyses, summary: sum.Snapshot()}, nil
}

// requireDir returns an error unless dir exists and is a directory.
func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
