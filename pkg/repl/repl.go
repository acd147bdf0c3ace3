// Package repl implements pq's --interactive mode: a readline loop that
// re-parses and re-evaluates a query against the same buffered record set
// for every line typed (SPEC_FULL.md §2 "Interactive REPL").
//
// Grounded on other_examples/jjo-promql-cli/repl.go's runInteractiveQueries
// loop (readline.NewEx, history file, ^C/EOF handling, a "quit"/"exit"
// escape hatch), adapted to drive pq's own query/engine/format stack
// instead of the upstream Prometheus engine that sibling tool wires.
package repl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/format"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/parser"
)

// Config carries the evaluation parameters every query run through the
// REPL is built with, mirroring the one-shot CLI path's engine.Context.
type Config struct {
	Interval time.Duration
	Lookback time.Duration
	HistoryFile string
}

// REPL re-evaluates queries against a fixed, already-mapped record buffer.
type REPL struct {
	records []model.Record
	cfg     Config
	out     *format.Writer
}

// New builds a REPL over records, writing each evaluated tick through out.
func New(records []model.Record, cfg Config, out *format.Writer) *REPL {
	return &REPL{records: records, cfg: cfg, out: out}
}

// Run drives the readline loop until the user types "quit"/"exit" or sends
// EOF. Per-query errors are reported to stderr and do not end the session;
// only a failure to read input itself does.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pq> ",
		HistoryFile:     r.cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "repl: failed to initialize readline")
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "repl: reading input failed")
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			return nil
		}

		if err := r.evalAndPrint(query); err != nil {
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

func (r *REPL) evalAndPrint(query string) error {
	expr, err := parser.Parse(query)
	if err != nil {
		return err
	}

	reader := engine.NewSampleReader(newSliceSource(r.records))
	root, err := engine.BuildRoot(&engine.Context{
		Reader:   reader,
		Interval: r.cfg.Interval,
		Lookback: r.cfg.Lookback,
	}, expr)
	if err != nil {
		return err
	}

	return engine.Drive(root, func(qv engine.QueryValue) error {
		return r.out.Write(format.QueryValueOf(qv))
	})
}

// sliceSource replays a fixed, already-mapped record buffer, letting the
// same records be evaluated fresh for every query the REPL runs.
type sliceSource struct {
	records []model.Record
	i       int
}

func newSliceSource(records []model.Record) *sliceSource {
	return &sliceSource{records: records}
}

func (s *sliceSource) Next() (model.Record, bool, error) {
	if s.i >= len(s.records) {
		return model.Record{}, false, nil
	}
	rec := s.records[s.i]
	s.i++
	return rec, true, nil
}
