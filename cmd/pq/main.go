// Command pq runs a pipeline program — decode | map | select | format —
// over standard input and writes the result to standard output (spec §6
// "CLI"). This file wires the pipeline stages built in pkg/{decoder,
// mapper,engine,format,repl} together; it contains no pipeline logic of
// its own.
//
// Grounded on the teacher's own thin-main-over-library-packages style
// (every real teacher command is a small flag-parse-then-dispatch file
// sitting on top of its pkg/ packages); logger wiring follows
// pkg/logql/engine.go's default-to-nop-logger idiom.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mitchellh/go-wordwrap"
	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/cliopt"
	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/format"
	"github.com/iximiuz/pq/pkg/input"
	"github.com/iximiuz/pq/pkg/mapper"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/program"
	"github.com/iximiuz/pq/pkg/query/ast"
	"github.com/iximiuz/pq/pkg/repl"
)

// version is stamped by the build system in the teacher's own releases;
// pq has no release pipeline yet, so it stays a plain constant.
const version = "dev"

// exit codes, spec §6: "0 success, 1 malformed program/query, 2 runtime
// error (writer failure)".
const (
	exitOK             = 0
	exitMalformedInput = 1
	exitRuntime        = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := cliopt.Parse("pq", version, args)
	if err != nil {
		fatal(stderr, err)
		return exitMalformedInput
	}

	logger := newLogger(stderr, opts.Verbose)

	prog, err := program.Parse(opts.Program)
	if err != nil {
		fatal(stderr, err)
		return exitMalformedInput
	}
	level.Info(logger).Log("msg", "parsed program", "program", opts.Program)

	if err := validateConfig(opts, prog); err != nil {
		fatal(stderr, err)
		return exitMalformedInput
	}

	dec, err := buildDecoder(prog.Decoder)
	if err != nil {
		fatal(stderr, err)
		return exitMalformedInput
	}

	lines := input.New(stdin)
	entries := mapper.NewLineDecoder(lines, dec, logger)

	var records recordSource = noRecords{}
	if prog.Mapper != nil {
		records = mapper.New(entries, prog.Mapper.Fields, timeRangeOf(opts), logger)
	}

	formatter, err := buildFormatter(prog)
	if err != nil {
		fatal(stderr, err)
		return exitMalformedInput
	}
	writer := format.NewWriter(stdout, formatter)

	if opts.Interactive {
		if err := runInteractive(opts, records, writer, logger); err != nil {
			fatal(stderr, err)
			return exitRuntime
		}
		return exitOK
	}

	if err := runPipeline(opts, prog, entries, records, writer, logger); err != nil {
		// Program and query parsing already succeeded above, so anything
		// failing here is a runtime error (spec §7: evaluator semantic
		// errors, writer I/O failures), exit 2.
		fatal(stderr, err)
		return exitRuntime
	}
	return exitOK
}

// recordSource is the subset of mapper.Mapper's surface the rest of main
// needs; satisfied by *mapper.Mapper and by noRecords when the program has
// no map clause.
type recordSource interface {
	Next() (model.Record, bool, error)
}

// noRecords is the recordSource used when the program has no map clause;
// it is never actually pulled from because that configuration never
// reaches the evaluator or the REPL (validateConfig rejects a select/
// --interactive without a map clause first).
type noRecords struct{}

func (noRecords) Next() (model.Record, bool, error) { return model.Record{}, false, nil }

// entrySource is the subset of mapper.LineDecoder's surface runPipeline
// needs when the program has no map clause, so raw decoded entries can
// still flow straight to the formatter.
type entrySource interface {
	Next() (decoder.Entry, bool, error)
}

// validateConfig enforces spec §7's "Configuration error" class: a select
// clause or --interactive both require a map clause (the evaluator and the
// REPL only ever operate on typed model.Record values, never raw decoded
// entries), and --interactive forbids the default/human-readable formatter
// (SPEC_FULL.md §3 "Interactive REPL").
func validateConfig(opts *cliopt.Options, prog *program.Program) error {
	if prog.Query != nil && prog.Mapper == nil {
		return errors.New("config: a select clause requires a preceding map clause")
	}
	if opts.Interactive {
		if prog.Mapper == nil {
			return errors.New("config: --interactive requires a map clause")
		}
		if !prog.HasFormatter || prog.Formatter == program.FormatHumanReadable {
			return errors.New("config: --interactive cannot use the human-readable formatter")
		}
	}
	return nil
}

func buildDecoder(d program.Decoder) (decoder.Decoder, error) {
	switch d.Kind {
	case program.DecoderRegex:
		return decoder.NewRegexDecoder(d.Pattern)
	case program.DecoderJSON:
		return decoder.NewJSONDecoder(), nil
	default:
		return nil, errors.Errorf("config: unknown decoder kind %v", d.Kind)
	}
}

func buildFormatter(prog *program.Program) (format.Formatter, error) {
	if !prog.HasFormatter {
		return &format.HumanReadableFormatter{}, nil
	}
	switch prog.Formatter {
	case program.FormatJSON:
		return &format.JSONFormatter{}, nil
	case program.FormatPromAPI:
		return &format.PromAPIFormatter{}, nil
	case program.FormatHumanReadable:
		return &format.HumanReadableFormatter{}, nil
	default:
		return nil, errors.Errorf("config: unknown formatter kind %v", prog.Formatter)
	}
}

func timeRangeOf(opts *cliopt.Options) *mapper.TimeRange {
	if opts.Start == nil && opts.End == nil {
		return nil
	}
	rng := mapper.TimeRange{Start: model.MinTimestamp, End: model.MaxTimestamp}
	if opts.Start != nil {
		rng.Start = model.FromTime(*opts.Start)
	}
	if opts.End != nil {
		rng.End = model.FromTime(*opts.End)
	}
	return &rng
}

// defaultIntervalSentinel matches cliopt's own --interval default: when the
// user didn't override it, pq derives the evaluation step from the query's
// smallest range duration instead (spec §4.7). Since the flag library
// applies its default before main ever sees Options, an explicit
// `--interval 1s` is indistinguishable from "not passed" here — a known
// rough edge, not a behavior change.
const defaultIntervalSentinel = time.Second

// resolvedInterval returns the evaluation step to build the engine with:
// the user's explicit --interval, or the query-derived default when the
// flag was left at its own default value.
func resolvedInterval(opts *cliopt.Options, query ast.Expr) time.Duration {
	if opts.Interval != defaultIntervalSentinel {
		return opts.Interval
	}
	if query == nil {
		return opts.Interval
	}
	return engine.DefaultInterval(query)
}

// runPipeline drives the non-interactive path: every mapped record or
// (absent a map clause) every decoded entry is formatted and written, or,
// if a select clause is present, its query is built once and driven to
// completion against the mapped record stream.
func runPipeline(
	opts *cliopt.Options,
	prog *program.Program,
	entries entrySource,
	records recordSource,
	writer *format.Writer,
	logger log.Logger,
) error {
	if prog.Query != nil {
		return runQuery(opts, prog.Query, records, writer, logger)
	}
	if prog.Mapper != nil {
		return runRecords(records, writer)
	}
	return runEntries(entries, writer)
}

func runEntries(entries entrySource, writer *format.Writer) error {
	for {
		entry, ok, err := entries.Next()
		if err != nil {
			return errors.Wrap(err, "pq: reading input failed")
		}
		if !ok {
			return nil
		}
		if err := writer.Write(format.EntryValue(entry)); err != nil {
			return err
		}
	}
}

func runRecords(records recordSource, writer *format.Writer) error {
	for {
		rec, ok, err := records.Next()
		if err != nil {
			return errors.Wrap(err, "pq: mapping input failed")
		}
		if !ok {
			return nil
		}
		if err := writer.Write(format.RecordValue(rec)); err != nil {
			return err
		}
	}
}

func runQuery(
	opts *cliopt.Options,
	query ast.Expr,
	records recordSource,
	writer *format.Writer,
	logger log.Logger,
) error {
	interval := resolvedInterval(opts, query)
	level.Info(logger).Log("msg", "evaluating query", "interval", interval, "lookback", opts.Lookback)

	var startAt *model.Timestamp
	if opts.Start != nil {
		ts := model.FromTime(*opts.Start)
		startAt = &ts
	}

	reader := engine.NewSampleReader(records)
	root, err := engine.BuildRoot(&engine.Context{
		Reader:   reader,
		Interval: interval,
		Lookback: opts.Lookback,
		StartAt:  startAt,
	}, query)
	if err != nil {
		return errors.Wrap(err, "pq: building query evaluator failed")
	}

	return engine.Drive(root, func(qv engine.QueryValue) error {
		return writer.Write(format.QueryValueOf(qv))
	})
}

// runInteractive buffers every mapped record, then hands the buffer to the
// REPL, which re-parses and re-evaluates a freshly typed query against it
// for every line the user enters (SPEC_FULL.md §3 "Interactive REPL").
func runInteractive(
	opts *cliopt.Options,
	records recordSource,
	writer *format.Writer,
	logger log.Logger,
) error {
	var buffered []model.Record
	for {
		rec, ok, err := records.Next()
		if err != nil {
			return errors.Wrap(err, "pq: mapping input failed")
		}
		if !ok {
			break
		}
		buffered = append(buffered, rec)
	}
	level.Info(logger).Log("msg", "buffered records for interactive mode", "count", len(buffered))

	r := repl.New(buffered, repl.Config{
		Interval: opts.Interval,
		Lookback: opts.Lookback,
	}, writer)
	return r.Run()
}

// newLogger builds the go-kit logger every pipeline stage is handed:
// a no-op sink by default, a leveled logfmt logger writing to stderr under
// --verbose (spec §7 "diagnostic under verbose"), matching the teacher's
// own default-to-nop pattern in pkg/logql/engine.go.
func newLogger(stderr io.Writer, verbose bool) log.Logger {
	if !verbose {
		return log.NewNopLogger()
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, level.AllowDebug())
}

// fatal prints err to stderr, word-wrapped to a conventional terminal
// width the same way the teacher wraps its own long CLI messages.
func fatal(stderr io.Writer, err error) {
	msg := wordwrap.WrapString(fmt.Sprintf("pq: %v", err), 100)
	fmt.Fprintln(stderr, msg)
}
