// Package query implements the one-shot visit query command.
package query

import (
	"context"
	"encoding/json"
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
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

// options holds the per-invocation query parameters. They are flag-only and
// deliberately kept out of the settings struct.
type options struct {
	devices  string
	groups   string
	stations string
	recType  string
	from     string
	until    string
	limit    int
	offset   int
	userID   uint
	jsonOut  bool
}

// Command creates the query command, which runs one visit aggregation pass
// and prints the result.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Aggregate recordings into visits and print them",
		Long:  "Run one visit aggregation pass over the recording database and print the resulting visits, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(settings, opts)
		},
	}

	setupFlags(cmd, settings, opts)

	return cmd
}

// setupFlags configures flags specific to the query command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) {
	cmd.Flags().StringVar(&opts.devices, "devices", "", "Comma-separated device ids to include")
	cmd.Flags().StringVar(&opts.groups, "groups", "", "Comma-separated group ids to include")
	cmd.Flags().StringVar(&opts.stations, "stations", "", "Comma-separated station ids to include")
	cmd.Flags().StringVar(&opts.recType, "type", "", "Recording type to include (e.g. thermalRaw)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Earliest recording time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Latest recording time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of complete visits to return (0 uses visits.maxvisits)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Recording offset to resume from, as returned in queryOffset")
	cmd.Flags().UintVar(&opts.userID, "user", 0, "User id whose tags win ties when naming a visit")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full result as JSON")
	cmd.Flags().DurationVar(&settings.Visits.Interval, "interval", viper.GetDuration("visits.interval"), "Maximum gap between recordings within one visit")

	// Only the settings-backed flag binds to viper; the rest are
	// per-invocation parameters.
	cobra.CheckErr(viper.BindPFlag("visits.interval", cmd.Flags().Lookup("interval")))
}

func runQuery(settings *conf.Settings, opts *options) error {
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

	result, err := engine.Run(ctx, visits.Params{
		Filter:           filter,
		RequestVisits:    opts.limit,
		Offset:           opts.offset,
		RequestingUserID: opts.userID,
	})
	if err != nil {
		return fmt.Errorf("generating visits: %w", err)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		printResult(os.Stdout, result)
	}

	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "interrupted; resume with --offset %d\n", result.QueryOffset)
	}

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

// printResult writes a compact human-readable summary of the result.
func printResult(w io.Writer, result *visits.Result) {
	fmt.Fprintf(w, "%d visits from %d of %d recordings\n",
		result.NumVisits, result.NumRecordings, result.TotalRecordings)

	for _, v := range result.Visits {
		fmt.Fprintf(w, "#%-4d %-20s %-14s %s - %s  events=%d",
			v.ID, v.DeviceName, v.AssumedTag,
			v.Start.Format(time.RFC3339), v.End.Format(time.TimeOnly), len(v.Events))
		if n := len(v.AudioBaitEvents); n > 0 {
			fmt.Fprintf(w, " audiobait=%d", n)
		}
		fmt.Fprintln(w)
	}

	if result.HasMoreVisits {
		fmt.Fprintf(w, "more visits remain, resume with --offset %d\n", result.QueryOffset)
	}
}
