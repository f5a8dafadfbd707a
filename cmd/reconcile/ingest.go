package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <export-dir>",
	Short: "Stage an export directory into the local database",
	Long: `Stage every JSON-lines record under an export directory into the staging
database. Lines that were staged before are skipped, so re-running ingest over
a growing export only adds what is new. Unparseable lines are recorded and
counted rather than aborting the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return runIngest(ctx, current, args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, e *env, dir string) error {
	if err := requireDir(dir); err != nil {
		return err
	}

	db, closeDB, err := e.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer closeDB()

	source := ingest.NewDirSource(dir, ingest.WithSourceLogger(e.logger))
	ing := ingest.New(source, db, ingest.WithLogger(e.logger))
	runErr := ing.Run(ctx)

	stats := ing.Stats()
	printIngestStats(e, dir, stats)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("ingest interrupted: %w", runErr)
		}
		return runErr
	}
	if stats.StoreErrors > 0 {
		return fmt.Errorf("%d records could not be staged", stats.StoreErrors)
	}
	return nil
}

func printIngestStats(e *env, dir string, s ingest.Stats) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(e.out, "%s %s\n", cyan("Ingested"), dir)
	fmt.Fprintf(e.out, "  staged:          %d\n", s.Inserted)
	fmt.Fprintf(e.out, "  already staged:  %d\n", s.AlreadyStaged)
	if s.ParseFailures > 0 {
		fmt.Fprintf(e.out, "  parse failures:  %s\n", color.YellowString("%d", s.ParseFailures))
	}
	if s.SourceErrors > 0 {
		fmt.Fprintf(e.out, "  source errors:   %s\n", color.YellowString("%d", s.SourceErrors))
	}
	if s.StoreErrors > 0 {
		fmt.Fprintf(e.out, "  store errors:    %s\n", color.RedString("%d", s.StoreErrors))
	}
}
