package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// HumanReadableFormatter is pq's default output mode: tab-separated,
// sorted-by-name label/value pairs, colorized (when stdout is a terminal)
// the way fatih/color auto-detects. Grounded on
// original_source/src/format/humanreadable.rs's format_tuple_entry/
// format_dict_entry/format_record, generalized to also cover the
// RangeVector/Scalar tick shapes that file left as
// `unimplemented!("coming soon...")`.
type HumanReadableFormatter struct {
	// Verbose prefixes each formatted entry and record with its source line
	// number. Query ticks carry no prefix.
	Verbose bool
}

var (
	nameColor  = color.New(color.FgCyan)
	labelColor = color.New(color.FgGreen)
	valueColor = color.New(color.FgYellow)
)

func (f *HumanReadableFormatter) Format(v Value) ([]byte, error) {
	switch {
	case v.Entry != nil:
		return f.formatEntry(*v.Entry), nil
	case v.Record != nil:
		return f.formatRecord(*v.Record), nil
	case v.Query != nil:
		return f.formatQuery(*v.Query)
	default:
		return nil, errEmptyValue()
	}
}

func (f *HumanReadableFormatter) prefixed(lineNo int, body string) []byte {
	if f.Verbose {
		return []byte(fmt.Sprintf("%d: %s", lineNo, body))
	}
	return []byte(body)
}

func (f *HumanReadableFormatter) formatEntry(e decoder.Entry) []byte {
	if e.IsTuple() {
		return f.prefixed(e.LineNo, strings.Join(e.Tuple, "\t"))
	}
	return f.prefixed(e.LineNo, formatDict(e.Dict))
}

func (f *HumanReadableFormatter) formatRecord(r model.Record) []byte {
	var parts []string
	if r.Timestamp != nil {
		parts = append(parts, r.Timestamp.Time().Format("2006-01-02T15:04:05.000Z07:00"))
	}
	if !r.Labels.IsEmpty() {
		parts = append(parts, formatLabels(r.Labels))
	}
	if len(r.Values) > 0 {
		names := make([]string, 0, len(r.Values))
		for name := range r.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, fmt.Sprintf("%s=%s", labelColor.Sprint(name), humanizeFloat(r.Values[name])))
		}
		parts = append(parts, strings.Join(pairs, "\t"))
	}
	return f.prefixed(r.LineNo, strings.Join(parts, "\t"))
}

func (f *HumanReadableFormatter) formatQuery(qv engine.QueryValue) ([]byte, error) {
	switch qv.Kind {
	case ast.KindScalar:
		return []byte(humanizeFloat(qv.Scalar)), nil

	case ast.KindInstantVector:
		lines := []string{fmt.Sprintf("# %s", humanize.Time(qv.Timestamp.Time()))}
		for _, s := range qv.Vector {
			lines = append(lines, formatMetricLine(s.Labels, humanizeFloat(s.Value)))
		}
		return []byte(strings.Join(lines, "\n")), nil

	case ast.KindRangeVector:
		lines := []string{fmt.Sprintf("# %s", humanize.Time(qv.Timestamp.Time()))}
		for _, series := range qv.Matrix {
			vals := make([]string, 0, len(series.Samples))
			for _, sm := range series.Samples {
				vals = append(vals, fmt.Sprintf("%s@%d", humanizeFloat(sm.Value), int64(sm.Timestamp)))
			}
			lines = append(lines, formatMetricLine(series.Labels, strings.Join(vals, " ")))
		}
		return []byte(strings.Join(lines, "\n")), nil

	default:
		return nil, errEmptyValue()
	}
}

func formatMetricLine(ls labels.Labels, value string) string {
	name := ls.Name()
	var sb strings.Builder
	if name != "" {
		sb.WriteString(nameColor.Sprint(name))
		sb.WriteByte('\t')
	}
	sb.WriteString(formatLabels(ls))
	sb.WriteByte('\t')
	sb.WriteString(valueColor.Sprint(value))
	return sb.String()
}

func formatLabels(ls labels.Labels) string {
	return formatDict(withoutName(ls))
}

func withoutName(ls labels.Labels) map[string]string {
	m := ls.Map()
	delete(m, labels.MetricName)
	return m
}

func formatDict(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%s", labelColor.Sprint(name), m[name]))
	}
	return strings.Join(pairs, "\t")
}

func humanizeFloat(v float64) string {
	return humanize.CommafWithDigits(v, 3)
}
