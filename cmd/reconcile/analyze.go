package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/notify"
	"github.com/graaaaa/reconcile/internal/report"
	"github.com/graaaaa/reconcile/internal/store"
	"github.com/graaaaa/reconcile/internal/summary"
)

type analyzeOptions struct {
	dir      string
	out      string
	fromDB   bool
	noSave   bool
	noNotify bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze [export-dir]",
	Short: "Classify duplicate groups and write per-group analyses",
	Long: `Group records by insert_id, classify and resolve every duplicate group,
and write one analysis file per group plus a run summary.

Records are read from export-dir, or from the staging database with --from-db.
The run is saved to the staging database for the review API unless --no-save
is given, and a summary is posted to the configured webhook unless
--no-notify is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := analyzeOpts
		if len(args) == 1 {
			opts.dir = args[0]
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		_, err := runAnalyze(ctx, current, opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeOpts.out, "output", "o", "analysis", "output directory")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.fromDB, "from-db", false, "read records from the staging database")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.noSave, "no-save", false, "do not save the run to the staging database")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.noNotify, "no-notify", false, "do not post the run summary to the webhook")
}

func runAnalyze(ctx context.Context, e *env, opts analyzeOptions) (store.Run, error) {
	if err := checkSource(opts.dir, opts.fromDB); err != nil {
		return store.Run{}, err
	}

	started := time.Now()
	records, source, err := e.loadRecords(ctx, opts.dir)
	if err != nil {
		return store.Run{}, err
	}

	res, err := e.analyzeRecords(ctx, records)
	if err != nil {
		return store.Run{}, err
	}

	w := report.NewWriter(opts.out,
		report.WithLogger(e.logger),
		report.WithPriceProperty(e.cfg.Rules.UnitPriceProperty),
	)
	if err := w.WriteAnalyses(res.analyses, res.summary); err != nil {
		return store.Run{}, err
	}

	run := store.Run{
		Source:     source,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Summary:    res.summary,
	}

	if !opts.noSave {
		db, closeDB, err := e.openStore(ctx, true)
		if err != nil {
			return run, err
		}
		err = db.SaveRun(ctx, &run, res.analyses)
		closeDB()
		if err != nil {
			return run, err
		}
		e.logger.Info("run saved", "run_id", run.ID)
	}

	printSummary(e, opts.out, run)

	if !opts.noNotify {
		notifyRun(ctx, e, run)
	}
	return run, nil
}

// checkSource validates the combination of a directory argument and --from-db.
func checkSource(dir string, fromDB bool) error {
	switch {
	case dir != "" && fromDB:
		return fmt.Errorf("export-dir and --from-db are mutually exclusive")
	case dir == "" && !fromDB:
		return fmt.Errorf("an export-dir or --from-db is required")
	case dir != "":
		return requireDir(dir)
	}
	return nil
}

// notifyRun posts the run summary when a webhook is configured. Failures are
// logged; the analysis output is already on disk.
func notifyRun(ctx context.Context, e *env, run store.Run) {
	if e.secrets.WebhookURL.IsEmpty() {
		e.logger.Debug("webhook not configured, notification skipped")
		return
	}
	sender := notify.NewDiscordSender(e.secrets.WebhookURL, notify.WithSenderLogger(e.logger))
	n := notify.NewNotifier(sender,
		notify.WithNotifyOnCleanRuns(e.cfg.NotifyOnCleanRuns),
		notify.WithNotifierLogger(e.logger),
	)
	sent, err := n.NotifyRun(ctx, run)
	if err != nil {
		e.logger.Warn("run notification failed", "error", err)
		return
	}
	if sent {
		e.logger.Info("run notification sent")
	}
}

func printSummary(e *env, out string, run store.Run) {
	s := run.Summary
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintf(e.out, "%s %s -> %s\n", cyan("Analyzed"), run.Source, out)
	if run.ID != "" {
		fmt.Fprintf(e.out, "  run:             %s\n", run.ID)
	}
	fmt.Fprintf(e.out, "  events:          %d\n", s.TotalEvents)
	fmt.Fprintf(e.out, "  unique keys:     %d\n", s.UniqueInsertIDs)
	fmt.Fprintf(e.out, "  duplicate keys:  %d\n", s.DuplicateInsertIDsCount)
	if s.MissingInsertIDs > 0 {
		fmt.Fprintf(e.out, "  missing keys:    %s\n", color.YellowString("%d", s.MissingInsertIDs))
	}
	fmt.Fprintf(e.out, "  resolved:        %s\n", color.GreenString("%d", s.Resolved))
	if s.Unresolved > 0 {
		fmt.Fprintf(e.out, "  unresolved:      %s\n", color.YellowString("%d", s.Unresolved))
	} else {
		fmt.Fprintf(e.out, "  unresolved:      0\n")
	}

	for _, tag := range sortedTags(s) {
		fmt.Fprintf(e.out, "    %-40s %d\n", tag, s.DupeTypeCounts[tag])
	}
}

// sortedTags orders dupe type tags by count, then name.
func sortedTags(s summary.Report) []string {
	tags := make([]string, 0, len(s.DupeTypeCounts))
	for tag := range s.DupeTypeCounts {
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(s.DupeTypeCounts[b], s.DupeTypeCounts[a]),
			cmp.Compare(a, b),
		)
	})
	return tags
}
