// Package mapper implements the Mapper pipeline stage (spec §2, §3): turning
// a decoder.Entry into a model.Record by applying a program.Mapper's field
// rules, and optionally filtering records to a time range before they ever
// reach the evaluator.
//
// Grounded on the original Rust implementation's src/parse/mapper/{strategy,
// mapper,record}.rs: one MapperField per output field, locating a value by
// tuple position or dict key, typing it, and assembling the record's label
// set and numeric value bag from the result.
package mapper

import (
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/program"
	"github.com/iximiuz/pq/pkg/timefmt"
)

// LineReader is the line-framing stage a LineDecoder pulls raw lines from;
// satisfied by *pkg/input.LineSource.
type LineReader interface {
	Next() (lineNo int, line []byte, ok bool, err error)
}

// EntrySource is the decoded-line stream a Mapper pulls from.
type EntrySource interface {
	Next() (decoder.Entry, bool, error)
}

// LineDecoder adapts a LineReader and a decoder.Decoder into an EntrySource,
// skipping lines that fail to decode rather than failing the whole run
// (spec §7: per-line decode errors are "skipped, diagnostic under
// --verbose").
type LineDecoder struct {
	lines  LineReader
	decode decoder.Decoder
	logger log.Logger
}

// NewLineDecoder wraps lines and decode. A nil logger behaves like
// log.NewNopLogger().
func NewLineDecoder(lines LineReader, decode decoder.Decoder, logger log.Logger) *LineDecoder {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &LineDecoder{lines: lines, decode: decode, logger: logger}
}

func (d *LineDecoder) Next() (decoder.Entry, bool, error) {
	for {
		lineNo, line, ok, err := d.lines.Next()
		if err != nil {
			return decoder.Entry{}, false, errors.Wrap(err, "mapper: reading input failed")
		}
		if !ok {
			return decoder.Entry{}, false, nil
		}
		entry, err := d.decode.Decode(lineNo, line)
		if err != nil {
			level.Debug(d.logger).Log("msg", "skipping line: decode failed", "line", lineNo, "err", err)
			continue
		}
		return entry, true, nil
	}
}

// TimeRange bounds records to [Start, End), applied at the mapper stage so
// out-of-range lines never reach the evaluator (spec §6 --start/--end).
type TimeRange struct {
	Start model.Timestamp
	End   model.Timestamp
}

func (r TimeRange) contains(ts model.Timestamp) bool {
	return !ts.Before(r.Start) && ts.Before(r.End)
}

// Mapper implements engine.RecordSource, applying a parsed field list to
// every entry pulled from an EntrySource.
type Mapper struct {
	src    EntrySource
	fields []program.MapperField
	rng    *TimeRange
	logger log.Logger
}

// New builds a Mapper. rng may be nil to disable time-range filtering; a
// nil logger behaves like log.NewNopLogger().
func New(src EntrySource, fields []program.MapperField, rng *TimeRange, logger log.Logger) *Mapper {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Mapper{src: src, fields: fields, rng: rng, logger: logger}
}

// Next returns the next record whose fields all mapped successfully and
// that falls inside the configured time range, skipping every other entry.
func (m *Mapper) Next() (model.Record, bool, error) {
	for {
		entry, ok, err := m.src.Next()
		if err != nil {
			return model.Record{}, false, err
		}
		if !ok {
			return model.Record{}, false, nil
		}

		rec, err := m.apply(entry)
		if err != nil {
			level.Debug(m.logger).Log("msg", "skipping line: mapping failed", "line", entry.LineNo, "err", err)
			continue
		}
		if m.rng != nil && rec.HasTimestamp() && !m.rng.contains(*rec.Timestamp) {
			continue
		}
		return rec, true, nil
	}
}

func (m *Mapper) apply(entry decoder.Entry) (model.Record, error) {
	values := make(map[string]float64)
	labelPairs := make(map[string]string)
	var ts *model.Timestamp

	for _, f := range m.fields {
		if f.Const {
			labelPairs[f.ConstName] = f.ConstValue
			continue
		}

		raw, ok := lookup(entry, f.Loc)
		if !ok {
			return model.Record{}, errors.Errorf("field %s not present in line", f.Loc)
		}
		name := f.EndName()

		switch f.Type {
		case program.FieldNumber:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return model.Record{}, errors.Wrapf(err, "field %s is not numeric", name)
			}
			values[name] = v

		case program.FieldTimestamp:
			t, err := parseTimestamp(raw, f.TSLayout)
			if err != nil {
				return model.Record{}, errors.Wrapf(err, "field %s", name)
			}
			ts = &t

		case program.FieldString:
			labelPairs[name] = raw

		default: // FieldAuto: numeric-parseable values become sample values,
			// everything else becomes a label (spec §6 "FieldType::Auto").
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				values[name] = v
			} else {
				labelPairs[name] = raw
			}
		}
	}

	values[model.LineField] = float64(entry.LineNo)

	return model.Record{
		LineNo:    entry.LineNo,
		Timestamp: ts,
		Labels:    labels.FromMap(labelPairs),
		Values:    values,
	}, nil
}

func parseTimestamp(raw, layout string) (model.Timestamp, error) {
	if layout != "" {
		return timefmt.ParseLayout(raw, layout)
	}
	if t, ok := timefmt.Parse(raw); ok {
		return t, nil
	}
	return 0, errors.Errorf("unrecognized timestamp format %q", raw)
}

func lookup(entry decoder.Entry, loc program.FieldLoc) (string, bool) {
	if loc.ByName {
		if entry.Dict == nil {
			return "", false
		}
		v, ok := entry.Dict[loc.Name]
		return v, ok
	}
	if entry.Tuple == nil {
		return "", false
	}
	if loc.Position < 0 || loc.Position >= len(entry.Tuple) {
		return "", false
	}
	return entry.Tuple[loc.Position], true
}
