// Package format implements the output stage of the pipeline (spec §2, §6
// "Formatters"): turning whatever the pipeline produced — a raw decoded
// entry, a mapped record, or a query tick — into bytes on a writer.
//
// Grounded on the original Rust implementation's src/format/{formatter,
// humanreadable,json,promapi}.rs: one closed Value union with a Tuple/Dict/
// Record/QueryValue-shaped payload, and one Formatter per output mode
// selected by the program's trailing formatter clause.
package format

import (
	"io"

	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/model"
)

// Value is whatever one pipeline stage produced for one input line or query
// tick. Exactly one field is set, mirroring the original's
// Entry/Record/QueryValue enum.
type Value struct {
	Entry  *decoder.Entry
	Record *model.Record
	Query  *engine.QueryValue
}

// EntryValue wraps a decoded entry (no mapper/query stage configured).
func EntryValue(e decoder.Entry) Value { return Value{Entry: &e} }

// RecordValue wraps a mapped record (mapper configured, no query).
func RecordValue(r model.Record) Value { return Value{Record: &r} }

// QueryValueOf wraps one evaluator tick.
func QueryValueOf(qv engine.QueryValue) Value { return Value{Query: &qv} }

// Formatter renders one Value as a self-contained chunk of output bytes (no
// trailing newline — Writer adds it).
type Formatter interface {
	Format(v Value) ([]byte, error)
}

// Writer drives a Formatter against an underlying io.Writer, one Value per
// line.
type Writer struct {
	w io.Writer
	f Formatter
}

// NewWriter builds a Writer emitting to w via f.
func NewWriter(w io.Writer, f Formatter) *Writer {
	return &Writer{w: w, f: f}
}

// Write formats v and writes it followed by a newline.
func (w *Writer) Write(v Value) error {
	b, err := w.f.Format(v)
	if err != nil {
		return errors.Wrap(err, "format: formatting failed")
	}
	if _, err := w.w.Write(b); err != nil {
		return errors.Wrap(err, "format: write failed")
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return errors.Wrap(err, "format: write failed")
	}
	return nil
}

func errEmptyValue() error {
	return errors.New("format: value carries none of Entry, Record, or Query")
}
