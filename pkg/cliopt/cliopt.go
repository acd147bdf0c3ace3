// Package cliopt parses pq's command-line surface (spec.md §6 "CLI"):
// `pq [--interval D] [--lookback D] [--start T] [--end T] [--interactive]
// [--verbose] <program>`. Grounded on the kingpin.Application/Flag wiring
// style used throughout the teacher repo (e.g.
// tools/querycomparator/metastore.go's addMetastoreCommand), adapted from a
// subcommand registrar to a single flat flag set since pq has no
// subcommands.
package cliopt

import (
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/timefmt"
)

// Options holds the parsed command line. Start/End are nil when the
// corresponding flag was not given.
type Options struct {
	Interval    time.Duration
	Lookback    time.Duration
	Start       *time.Time
	End         *time.Time
	Interactive bool
	Verbose     bool
	Program     string
}

const (
	defaultInterval = time.Second
	defaultLookback = 5 * time.Minute
)

// Parse parses args (typically os.Args[1:]) into Options. name and version
// are used for the app's --help/--version output.
func Parse(name, version string, args []string) (*Options, error) {
	app := kingpin.New(name, "Run PromQL-like queries over plain text logs.")
	app.Version(version)
	app.HelpFlag.Short('h')

	var opts Options
	var start, end string

	app.Flag("interval", "Evaluation step between successive query ticks.").
		Default(defaultInterval.String()).DurationVar(&opts.Interval)
	app.Flag("lookback", "Default staleness window for an instant vector selector.").
		Default(defaultLookback.String()).DurationVar(&opts.Lookback)
	app.Flag("start", "Evaluate the query starting at this instant (any accepted input timestamp format).").
		StringVar(&start)
	app.Flag("end", "Stop evaluating the query after this instant.").
		StringVar(&end)
	app.Flag("interactive", "Start a REPL that re-evaluates queries typed against the buffered input.").
		BoolVar(&opts.Interactive)
	app.Flag("verbose", "Log skipped/unparseable lines to stderr.").
		Short('v').BoolVar(&opts.Verbose)

	app.Arg("program", "Pipeline expression: decoder | map {...} | select <query> | formatter").
		Required().StringVar(&opts.Program)

	if _, err := app.Parse(args); err != nil {
		return nil, errors.Wrap(err, "cliopt: invalid command line")
	}

	if start != "" {
		t, err := parseFlagTime(start)
		if err != nil {
			return nil, errors.Wrap(err, "cliopt: --start")
		}
		opts.Start = &t
	}
	if end != "" {
		t, err := parseFlagTime(end)
		if err != nil {
			return nil, errors.Wrap(err, "cliopt: --end")
		}
		opts.End = &t
	}
	if opts.Start != nil && opts.End != nil && opts.End.Before(*opts.Start) {
		return nil, errors.New("cliopt: --end must not be before --start")
	}

	return &opts, nil
}

// parseFlagTime accepts the same input timestamp formats pq recognizes in
// mapped fields (spec §6), so --start/--end read naturally against the same
// data the program maps.
func parseFlagTime(raw string) (time.Time, error) {
	ts, ok := timefmt.Parse(raw)
	if !ok {
		return time.Time{}, errors.Errorf("unrecognized timestamp format: %q", raw)
	}
	return ts.Time(), nil
}
