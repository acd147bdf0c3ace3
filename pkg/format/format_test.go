package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

func TestHumanReadableEntry(t *testing.T) {
	f := &HumanReadableFormatter{}
	b, err := f.Format(EntryValue(decoder.Entry{LineNo: 3, Tuple: []string{"a", "b"}}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if string(b) != "a\tb" {
		t.Errorf("got %q", b)
	}
}

func TestHumanReadableVerbosePrefixesLineNo(t *testing.T) {
	f := &HumanReadableFormatter{Verbose: true}
	b, err := f.Format(EntryValue(decoder.Entry{LineNo: 3, Tuple: []string{"a"}}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.HasPrefix(string(b), "3: ") {
		t.Errorf("got %q, want a line-number prefix", b)
	}
}

func TestHumanReadableRecord(t *testing.T) {
	ts := model.Timestamp(1700000000000)
	rec := model.Record{
		LineNo:    1,
		Timestamp: &ts,
		Labels:    labels.FromStrings("job", "nginx"),
		Values:    map[string]float64{"latency": 12.5},
	}
	f := &HumanReadableFormatter{}
	b, err := f.Format(RecordValue(rec))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "job=nginx") || !strings.Contains(s, "latency=") {
		t.Errorf("got %q", s)
	}
}

func TestJSONFormatterEntry(t *testing.T) {
	f := &JSONFormatter{}
	b, err := f.Format(EntryValue(decoder.Entry{LineNo: 1, Dict: map[string]string{"a": "1"}}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !bytes.Contains(b, []byte(`"a":"1"`)) {
		t.Errorf("got %s", b)
	}
}

func TestJSONFormatterQueryScalar(t *testing.T) {
	f := &JSONFormatter{}
	b, err := f.Format(QueryValueOf(engine.QueryValue{Kind: ast.KindScalar, Scalar: 42}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !bytes.Contains(b, []byte(`"value":42`)) {
		t.Errorf("got %s", b)
	}
}

func TestPromAPIFormatterRejectsEntry(t *testing.T) {
	f := &PromAPIFormatter{}
	if _, err := f.Format(EntryValue(decoder.Entry{LineNo: 1, Tuple: []string{"x"}})); err == nil {
		t.Fatalf("expected an error for a non-query value")
	}
}

func TestPromAPIFormatterInstantVector(t *testing.T) {
	f := &PromAPIFormatter{}
	qv := engine.QueryValue{
		Kind:      ast.KindInstantVector,
		Timestamp: model.Timestamp(1700000000000),
		Vector: []engine.VectorSample{
			{Labels: labels.FromStrings("__name__", "up", "job", "a"), Value: 1},
		},
	}
	b, err := f.Format(QueryValueOf(qv))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"resultType":"vector"`) {
		t.Errorf("got %s", s)
	}
	if !strings.Contains(s, `"up"`) || !strings.Contains(s, `"1"`) {
		t.Errorf("got %s", s)
	}
}

func TestPromAPIFormatterRangeVectorOldestFirst(t *testing.T) {
	f := &PromAPIFormatter{}
	qv := engine.QueryValue{
		Kind:      ast.KindRangeVector,
		Timestamp: model.Timestamp(3000),
		Matrix: []engine.RangeVectorSeries{
			{
				Labels: labels.FromStrings("__name__", "x"),
				// Newest-first, as RangeVectorSeries.Samples always arrives
				// (spec §3).
				Samples: []model.Sample{
					{Value: 7, Timestamp: model.Timestamp(3000)},
					{Value: 3, Timestamp: model.Timestamp(2000)},
					{Value: 1, Timestamp: model.Timestamp(1000)},
				},
			},
		},
	}
	b, err := f.Format(QueryValueOf(qv))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"resultType":"matrix"`) {
		t.Errorf("got %s", s)
	}

	i1 := strings.Index(s, `"1"`)
	i3 := strings.Index(s, `"3"`)
	i7 := strings.Index(s, `"7"`)
	if i1 == -1 || i3 == -1 || i7 == -1 {
		t.Fatalf("expected all three sample values present, got %s", s)
	}
	if !(i1 < i3 && i3 < i7) {
		t.Errorf("expected oldest-to-newest order (1, 3, 7), got %s", s)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, &JSONFormatter{})
	if err := w.Write(EntryValue(decoder.Entry{LineNo: 1, Tuple: []string{"x"}})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("expected a trailing newline, got %q", buf.String())
	}
}
