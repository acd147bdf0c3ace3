package input

import (
	"strings"
	"testing"
)

func TestLineSource(t *testing.T) {
	s := New(strings.NewReader("foo\nbar\nbaz"))

	var got []string
	for {
		lineNo, line, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if lineNo != len(got)+1 {
			t.Errorf("lineNo = %d, want %d", lineNo, len(got)+1)
		}
		got = append(got, string(line))
	}

	want := []string{"foo", "bar", "baz"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLineSourceEmpty(t *testing.T) {
	s := New(strings.NewReader(""))
	_, _, ok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected no lines from empty input")
	}
}
