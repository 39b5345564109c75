// Package report implements the CSV report export command.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	visitreport "github.com/TheCacophonyProject/Full-Noise/internal/report"
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

// options holds the per-invocation export parameters.
type options struct {
	out      string
	devices  string
	groups   string
	stations string
	recType  string
	from     string
	until    string
	offset   int
}

// Command creates the report command, which paginates the visit engine to
// exhaustion and writes every visit as CSV rows.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export all visits as a CSV report",
		Long:  "Aggregate every matching recording into visits and write them as chronologically interleaved CSV rows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(settings, opts)
		},
	}

	setupFlags(cmd, settings, opts)

	return cmd
}

// setupFlags configures flags specific to the report command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) {
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Path to write the CSV report to (default stdout)")
	cmd.Flags().StringVar(&opts.devices, "devices", "", "Comma-separated device ids to include")
	cmd.Flags().StringVar(&opts.groups, "groups", "", "Comma-separated group ids to include")
	cmd.Flags().StringVar(&opts.stations, "stations", "", "Comma-separated station ids to include")
	cmd.Flags().StringVar(&opts.recType, "type", "", "Recording type to include (e.g. thermalRaw)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Earliest recording time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Latest recording time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Recording offset to resume an interrupted export from")
	cmd.Flags().StringVar(&settings.Report.TimeZone, "timezone", viper.GetString("report.timezone"), "IANA time zone for report date and time columns")
	cmd.Flags().StringVar(&settings.Report.URLBase, "url-base", viper.GetString("report.urlbase"), "Base URL for recording links, empty for no links")

	cobra.CheckErr(viper.BindPFlag("report.timezone", cmd.Flags().Lookup("timezone")))
	cobra.CheckErr(viper.BindPFlag("report.urlbase", cmd.Flags().Lookup("url-base")))
}

func runReport(settings *conf.Settings, opts *options) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	store := datastore.New(settings, nil)
	if store == nil {
		return fmt.Errorf("no output database enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine := visits.New(settings, store, nil)
	assembler, err := visitreport.NewAssembler(settings)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.out != "" {
		f, createErr := os.Create(opts.out)
		if createErr != nil {
			return fmt.Errorf("creating report file: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("closing report file: %w", closeErr)
			}
		}()
		out = f
	}

	w := assembler.NewCSVWriter(out)

	params := visits.Params{Filter: filter, Offset: opts.offset}
	pages, total := 0, 0
	for {
		result, runErr := engine.Run(ctx, params)
		if runErr != nil {
			return fmt.Errorf("generating visits: %w", runErr)
		}
		if ctx.Err() != nil {
			// A cancelled run skips audio bait matching, so drop the page
			// rather than write rows with missing bait columns.
			_ = w.Flush()
			return fmt.Errorf("interrupted after %d visits, rerun with --offset %d to resume", total, params.Offset)
		}

		if err := w.Append(result.Visits); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}

		pages++
		total += result.NumVisits
		fmt.Fprintf(os.Stderr, "page %d: %d visits from %d recordings, next offset %d\n",
			pages, result.NumVisits, result.NumRecordings, result.QueryOffset)

		if !result.HasMoreVisits {
			break
		}
		if result.QueryOffset <= params.Offset {
			// A stalled offset would page forever.
			return fmt.Errorf("report pagination stalled at offset %d", result.QueryOffset)
		}
		params.Offset = result.QueryOffset
	}

	fmt.Fprintf(os.Stderr, "wrote %d visits in %d pages\n", total, pages)
	return nil
}

// buildFilter converts the flag values into a recording filter.
func buildFilter(opts *options) (datastore.RecordingFilter, error) {
	var filter datastore.RecordingFilter
	var err error

	if filter.DeviceIDs, err = parseIDList(opts.devices); err != nil {
		return filter, fmt.Errorf("invalid --devices: %w", err)
	}
	if filter.GroupIDs, err = parseIDList(opts.groups); err != nil {
		return filter, fmt.Errorf("invalid --groups: %w", err)
	}
	if filter.StationIDs, err = parseIDList(opts.stations); err != nil {
		return filter, fmt.Errorf("invalid --stations: %w", err)
	}
	filter.Type = opts.recType
	if filter.From, err = parseTime(opts.from); err != nil {
		return filter, fmt.Errorf("invalid --from: %w", err)
	}
	if filter.Until, err = parseTime(opts.until); err != nil {
		return filter, fmt.Errorf("invalid --until: %w", err)
	}

	return filter, nil
}

// parseIDList parses a comma-separated list of ids. Empty input means no
// filter.
func parseIDList(s string) ([]uint, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// parseTime accepts RFC3339 timestamps or bare dates.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q, want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
