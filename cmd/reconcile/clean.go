package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/report"
)

type cleanOptions struct {
	dir       string
	out       string
	fromDB    bool
	chunkSize int
}

var cleanOpts cleanOptions

var cleanCmd = &cobra.Command{
	Use:   "clean [export-dir]",
	Short: "Write a deduplicated copy of an export",
	Long: `Write every non-duplicate record and every resolved duplicate group to
chunked JSON-lines files. The output directory is replaced.

Groups that cannot be resolved automatically are written under
manual_review/<dupe type>/ and the command exits with status 2. Records
without an insert_id are written to manual_review/missing_insert_id.json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanOpts
		if len(args) == 1 {
			opts.dir = args[0]
		}
		if !cmd.Flags().Changed("chunk-size") {
			opts.chunkSize = current.cfg.ChunkSize
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		_, err := runClean(ctx, current, opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVarP(&cleanOpts.out, "output", "o", "cleaned", "output directory (replaced)")
	cleanCmd.Flags().BoolVar(&cleanOpts.fromDB, "from-db", false, "read records from the staging database")
	cleanCmd.Flags().IntVar(&cleanOpts.chunkSize, "chunk-size", report.DefaultChunkSize, "records per output chunk")
}

func runClean(ctx context.Context, e *env, opts cleanOptions) (report.CleanStats, error) {
	if err := checkSource(opts.dir, opts.fromDB); err != nil {
		return report.CleanStats{}, err
	}

	records, source, err := e.loadRecords(ctx, opts.dir)
	if err != nil {
		return report.CleanStats{}, err
	}

	res, err := e.analyzeRecords(ctx, records)
	if err != nil {
		return report.CleanStats{}, err
	}

	w := report.NewWriter(opts.out,
		report.WithLogger(e.logger),
		report.WithPriceProperty(e.cfg.Rules.UnitPriceProperty),
	)
	stats, err := w.WriteClean(res.partition, res.analyses, opts.chunkSize)
	if err != nil && !errors.Is(err, report.ErrUnresolved) {
		return stats, err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(e.out, "%s %s -> %s\n", cyan("Cleaned"), source, opts.out)
	fmt.Fprintf(e.out, "  non-duplicate records:  %d\n", stats.NonDuplicateRecords)
	fmt.Fprintf(e.out, "  resolved records:       %s\n", color.GreenString("%d", stats.ResolvedRecords))
	fmt.Fprintf(e.out, "  chunks:                 %d\n", stats.Chunks)
	if stats.MissingKeyRecords > 0 {
		fmt.Fprintf(e.out, "  missing insert_id:      %s\n", color.YellowString("%d", stats.MissingKeyRecords))
	}
	if stats.UnresolvedGroups > 0 {
		fmt.Fprintf(e.out, "  unresolved groups:      %s\n", color.YellowString("%d", stats.UnresolvedGroups))
	}
	return stats, err
}
