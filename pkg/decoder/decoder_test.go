package decoder

import (
	"reflect"
	"testing"
)

func TestRegexDecoder(t *testing.T) {
	d, err := NewRegexDecoder(`(\d+)\s(\w+)\s(\d+)`)
	if err != nil {
		t.Fatalf("NewRegexDecoder: %v", err)
	}

	e, err := d.Decode(1, []byte("1000 foo 42"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !e.IsTuple() {
		t.Fatalf("expected a tuple entry")
	}
	want := []string{"1000", "foo", "42"}
	if !reflect.DeepEqual(e.Tuple, want) {
		t.Errorf("Tuple = %v, want %v", e.Tuple, want)
	}
}

func TestRegexDecoderNoMatch(t *testing.T) {
	d, err := NewRegexDecoder(`^\d+$`)
	if err != nil {
		t.Fatalf("NewRegexDecoder: %v", err)
	}
	if _, err := d.Decode(1, []byte("not a number")); err == nil {
		t.Fatalf("expected a no-match error")
	}
}

func TestJSONDecoderTuple(t *testing.T) {
	d := NewJSONDecoder()
	e, err := d.Decode(1, []byte(`[1000, "foo", 42, true, null]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !e.IsTuple() {
		t.Fatalf("expected a tuple entry")
	}
	want := []string{"1000", "foo", "42", "true", "null"}
	if !reflect.DeepEqual(e.Tuple, want) {
		t.Errorf("Tuple = %v, want %v", e.Tuple, want)
	}
}

func TestJSONDecoderDict(t *testing.T) {
	d := NewJSONDecoder()
	e, err := d.Decode(1, []byte(`{"ts": 1000, "job": "a", "x": 1}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !e.IsDict() {
		t.Fatalf("expected a dict entry")
	}
	want := map[string]string{"ts": "1000", "job": "a", "x": "1"}
	if !reflect.DeepEqual(e.Dict, want) {
		t.Errorf("Dict = %v, want %v", e.Dict, want)
	}
}

func TestJSONDecoderRejectsScalar(t *testing.T) {
	d := NewJSONDecoder()
	if _, err := d.Decode(1, []byte(`42`)); err == nil {
		t.Fatalf("expected an error for a bare scalar")
	}
}
