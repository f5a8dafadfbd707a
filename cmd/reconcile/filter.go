package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/filter"
	"github.com/graaaaa/reconcile/internal/ingest"
	"github.com/graaaaa/reconcile/internal/report"
)

type filterOptions struct {
	out       string
	eventType string
	userID    string
	deviceID  string
	insertID  string
	uuid      string
	start     string
	end       string
	invert    bool
	firstSeen bool
}

var filterOpts filterOptions

// criteriaFlags cannot be combined with --first-seen.
var criteriaFlags = []string{"event-type", "user-id", "device-id", "insert-id", "uuid", "start", "end", "invert"}

var filterCmd = &cobra.Command{
	Use:   "filter <export-dir>",
	Short: "Split an export into matching and non-matching records",
	Long: `Split an export by field criteria. Every given criterion must match; time
bounds use the "2006-01-02 15:04:05" layout in UTC and are inclusive.
--invert keeps the records that do not match.

--first-seen instead keeps the first record of every insert_id and removes
later repeats.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterOpts.firstSeen {
			for _, name := range criteriaFlags {
				if cmd.Flags().Changed(name) {
					return fmt.Errorf("--first-seen cannot be combined with --%s", name)
				}
			}
		}
		_, err := runFilter(current, args[0], filterOpts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	f := filterCmd.Flags()
	f.StringVarP(&filterOpts.out, "output", "o", "filtered", "output directory")
	f.StringVar(&filterOpts.eventType, "event-type", "", "match event_type")
	f.StringVar(&filterOpts.userID, "user-id", "", "match user_id")
	f.StringVar(&filterOpts.deviceID, "device-id", "", "match device_id")
	f.StringVar(&filterOpts.insertID, "insert-id", "", "match insert_id")
	f.StringVar(&filterOpts.uuid, "uuid", "", "match uuid")
	f.StringVar(&filterOpts.start, "start", "", "earliest event_time, inclusive")
	f.StringVar(&filterOpts.end, "end", "", "latest event_time, inclusive")
	f.BoolVar(&filterOpts.invert, "invert", false, "keep records that do not match")
	f.BoolVar(&filterOpts.firstSeen, "first-seen", false, "keep only the first record of each insert_id")
}

// buildFilter turns options into a Filter.
func buildFilter(opts filterOptions) (filter.Filter, error) {
	if opts.firstSeen {
		return filter.NewFirstSeen(), nil
	}
	start, err := filter.ParseBound(opts.start)
	if err != nil {
		return nil, err
	}
	end, err := filter.ParseBound(opts.end)
	if err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, fmt.Errorf("--end %q is before --start %q", opts.end, opts.start)
	}
	return filter.Criteria{
		EventType: opts.eventType,
		UserID:    opts.userID,
		DeviceID:  opts.deviceID,
		InsertID:  opts.insertID,
		UUID:      opts.uuid,
		Start:     start,
		End:       end,
		Invert:    opts.invert,
	}, nil
}

func runFilter(e *env, dir string, opts filterOptions) (filter.Result, error) {
	f, err := buildFilter(opts)
	if err != nil {
		return filter.Result{}, err
	}
	records, err := ingest.ReadDir(dir)
	if err != nil {
		return filter.Result{}, err
	}

	res := filter.Apply(records, f)
	w := report.NewWriter(opts.out, report.WithLogger(e.logger))
	if err := w.WriteFilter(res); err != nil {
		return res, err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(e.out, "%s %s -> %s\n", cyan("Filtered"), dir, opts.out)
	fmt.Fprintf(e.out, "  filter:     %s\n", res.Description)
	fmt.Fprintf(e.out, "  total:      %d\n", res.Total())
	fmt.Fprintf(e.out, "  remaining:  %d\n", len(res.Kept))
	fmt.Fprintf(e.out, "  removed:    %d\n", len(res.Removed))
	return res, nil
}
