package timefmt

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2021-01-01T00:00:00Z", 1609459200000},
		{"2021-01-01T00:00:00+00:00", 1609459200000},
		{"Fri, 01 Jan 2021 00:00:00 +0000", 1609459200000},
		{"01/Jan/2021:00:00:00 +0000", 1609459200000},
		{"2021-01-01 00:00:00", 1609459200000},
		{"2021-01-01T00:00:00", 1609459200000},
		{"1609459200", 1609459200000},
		{"1609459200100", 1609459200100},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if !ok {
			t.Errorf("Parse(%q): no heuristic matched", tt.in)
			continue
		}
		if int64(got) != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, int64(got), tt.want)
		}
	}
}

func TestParseUnrecognized(t *testing.T) {
	if _, ok := Parse("not-a-timestamp"); ok {
		t.Errorf("Parse should not have matched garbage input")
	}
}

func TestParseLayout(t *testing.T) {
	got, err := ParseLayout("2021-01-01", "2006-01-02")
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	if int64(got) != 1609459200000 {
		t.Errorf("ParseLayout = %d, want 1609459200000", int64(got))
	}
}
