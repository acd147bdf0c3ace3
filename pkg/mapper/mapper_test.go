package mapper

import (
	"testing"

	"github.com/iximiuz/pq/pkg/decoder"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/program"
)

type fakeEntrySource struct {
	entries []decoder.Entry
	i       int
}

func (s *fakeEntrySource) Next() (decoder.Entry, bool, error) {
	if s.i >= len(s.entries) {
		return decoder.Entry{}, false, nil
	}
	e := s.entries[s.i]
	s.i++
	return e, true, nil
}

func TestMapperTuple(t *testing.T) {
	src := &fakeEntrySource{entries: []decoder.Entry{
		{LineNo: 1, Tuple: []string{"2024-01-01T00:00:00Z", "42"}},
	}}
	fields := []program.MapperField{
		{Loc: program.FieldLoc{Position: 0}, Type: program.FieldTimestamp},
		{Loc: program.FieldLoc{Position: 1}, Type: program.FieldNumber, Alias: "value"},
	}
	m := New(src, fields, nil, nil)

	rec, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if !rec.HasTimestamp() {
		t.Fatalf("expected a timestamped record")
	}
	if rec.Values["value"] != 42 {
		t.Errorf("value = %v, want 42", rec.Values["value"])
	}
	if rec.Values[model.LineField] != 1 {
		t.Errorf("%s = %v, want 1", model.LineField, rec.Values[model.LineField])
	}
}

func TestMapperConstAndDict(t *testing.T) {
	src := &fakeEntrySource{entries: []decoder.Entry{
		{LineNo: 1, Dict: map[string]string{"ts": "2024-01-01T00:00:00Z", "msg": "boom"}},
	}}
	fields := []program.MapperField{
		{Loc: program.FieldLoc{ByName: true, Name: "ts"}, Type: program.FieldTimestamp},
		{Loc: program.FieldLoc{ByName: true, Name: "msg"}, Type: program.FieldAuto},
		{Const: true, ConstName: "job", ConstValue: "nginx"},
	}
	m := New(src, fields, nil, nil)

	rec, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if rec.Labels.Get("msg") != "boom" {
		t.Errorf("msg label = %q", rec.Labels.Get("msg"))
	}
	if rec.Labels.Get("job") != "nginx" {
		t.Errorf("job label = %q", rec.Labels.Get("job"))
	}
}

func TestMapperSkipsUnmappableLines(t *testing.T) {
	src := &fakeEntrySource{entries: []decoder.Entry{
		{LineNo: 1, Tuple: []string{"not-a-number"}},
		{LineNo: 2, Tuple: []string{"7"}},
	}}
	fields := []program.MapperField{
		{Loc: program.FieldLoc{Position: 0}, Type: program.FieldNumber, Alias: "v"},
	}
	m := New(src, fields, nil, nil)

	rec, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if rec.LineNo != 2 {
		t.Errorf("LineNo = %d, want 2 (line 1 should have been skipped)", rec.LineNo)
	}
	if rec.Values["v"] != 7 {
		t.Errorf("v = %v, want 7", rec.Values["v"])
	}
}

func TestMapperTimeRangeFilter(t *testing.T) {
	src := &fakeEntrySource{entries: []decoder.Entry{
		{LineNo: 1, Tuple: []string{"2024-01-01T00:00:00Z"}},
		{LineNo: 2, Tuple: []string{"2024-06-01T00:00:00Z"}},
	}}
	fields := []program.MapperField{
		{Loc: program.FieldLoc{Position: 0}, Type: program.FieldTimestamp},
	}
	rng := &TimeRange{
		Start: mustParseRFC3339(t, "2024-05-01T00:00:00Z"),
		End:   model.MaxTimestamp,
	}
	m := New(src, fields, rng, nil)

	rec, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if rec.LineNo != 2 {
		t.Errorf("LineNo = %d, want 2 (line 1 is before the range start)", rec.LineNo)
	}

	_, ok, err = m.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected no more records")
	}
}

func mustParseRFC3339(t *testing.T, s string) model.Timestamp {
	t.Helper()
	ts, err := parseTimestamp(s, "")
	if err != nil {
		t.Fatalf("parseTimestamp(%q): %v", s, err)
	}
	return ts
}
