package program

import "testing"

func TestParseDecoderOnly(t *testing.T) {
	p, err := Parse(`/(\d+) (\w+)/`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Decoder.Kind != DecoderRegex {
		t.Fatalf("Decoder.Kind = %v, want DecoderRegex", p.Decoder.Kind)
	}
	if p.Decoder.Pattern != `(\d+) (\w+)` {
		t.Errorf("Decoder.Pattern = %q", p.Decoder.Pattern)
	}
	if p.Mapper != nil || p.Query != nil || p.HasFormatter {
		t.Errorf("expected no optional clauses, got %+v", p)
	}
}

func TestParseRegexEscapedSlash(t *testing.T) {
	p, err := Parse(`/a\/b/`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Decoder.Pattern != "a/b" {
		t.Errorf("Decoder.Pattern = %q, want %q", p.Decoder.Pattern, "a/b")
	}
}

func TestParseJSONDecoder(t *testing.T) {
	p, err := Parse(`json`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Decoder.Kind != DecoderJSON {
		t.Fatalf("Decoder.Kind = %v, want DecoderJSON", p.Decoder.Kind)
	}
}

func TestParseFullPipeline(t *testing.T) {
	p, err := Parse(`json | map { .ts:ts, .msg:str, job: "nginx" } | select sum(count_over_time({job="nginx"}[5m])) | to_json`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Mapper == nil || len(p.Mapper.Fields) != 3 {
		t.Fatalf("Mapper = %+v", p.Mapper)
	}
	if p.Mapper.Fields[0].Loc.Name != "ts" || p.Mapper.Fields[0].Type != FieldTimestamp {
		t.Errorf("field 0 = %+v", p.Mapper.Fields[0])
	}
	if p.Mapper.Fields[2].ConstName != "job" || p.Mapper.Fields[2].ConstValue != "nginx" {
		t.Errorf("field 2 = %+v", p.Mapper.Fields[2])
	}
	if p.Query == nil {
		t.Fatalf("expected a query clause")
	}
	if !p.HasFormatter || p.Formatter != FormatJSON {
		t.Errorf("Formatter = %v, HasFormatter = %v", p.Formatter, p.HasFormatter)
	}
}

func TestParseSelectWithoutFormatter(t *testing.T) {
	p, err := Parse(`json | map { .0:num } | select sum(f0{}[1m])`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.HasFormatter {
		t.Errorf("expected no formatter clause")
	}
	if p.Query == nil {
		t.Fatalf("expected a query clause")
	}
}

func TestParseAliasAndPositional(t *testing.T) {
	p, err := Parse(`/()/  | map { .0:ts "2006-01-02" as when, .1:num as value }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := p.Mapper.Fields[0]
	if f.Alias != "when" || f.TSLayout != "2006-01-02" {
		t.Errorf("field 0 = %+v", f)
	}
	if p.Mapper.Fields[1].EndName() != "value" {
		t.Errorf("field 1 EndName = %q", p.Mapper.Fields[1].EndName())
	}
}

func TestParseMixedLocatorsRejected(t *testing.T) {
	_, err := Parse(`json | map { .0:num, .name:str }`)
	if err == nil {
		t.Fatalf("expected an error for mixed positional/named locators")
	}
}

func TestParseDuplicateTimestampRejected(t *testing.T) {
	_, err := Parse(`json | map { .a:ts, .b:ts }`)
	if err == nil {
		t.Fatalf("expected an error for two timestamp fields")
	}
}

func TestParseEmptyFieldListRejected(t *testing.T) {
	_, err := Parse(`json | map { }`)
	if err == nil {
		t.Fatalf("expected an error for an empty field list")
	}
}

func TestParseMissingDecoderRejected(t *testing.T) {
	_, err := Parse(`map { .0:num }`)
	if err == nil {
		t.Fatalf("expected an error when the decoder clause is missing")
	}
}

func TestParseTrailingGarbageRejected(t *testing.T) {
	_, err := Parse(`json garbage`)
	if err == nil {
		t.Fatalf("expected an error for trailing input")
	}
}
