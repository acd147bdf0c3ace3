package cliopt

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	opts, err := Parse("pq", "test", []string{`/foo/`})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.Interval != defaultInterval {
		t.Errorf("Interval = %v, want %v", opts.Interval, defaultInterval)
	}
	if opts.Lookback != defaultLookback {
		t.Errorf("Lookback = %v, want %v", opts.Lookback, defaultLookback)
	}
	if opts.Start != nil || opts.End != nil {
		t.Errorf("expected no Start/End by default")
	}
	if opts.Program != `/foo/` {
		t.Errorf("Program = %q", opts.Program)
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := Parse("pq", "test", []string{
		"--interval=10s", "--lookback=2m", "--start=2024-01-01T00:00:00Z",
		"--end=2024-01-01T01:00:00Z", "--interactive", "--verbose", "json",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.Interval != 10*time.Second {
		t.Errorf("Interval = %v", opts.Interval)
	}
	if opts.Lookback != 2*time.Minute {
		t.Errorf("Lookback = %v", opts.Lookback)
	}
	if opts.Start == nil || opts.End == nil {
		t.Fatalf("expected Start and End to be set")
	}
	if !opts.Interactive || !opts.Verbose {
		t.Errorf("expected Interactive and Verbose set")
	}
}

func TestParseEndBeforeStartRejected(t *testing.T) {
	_, err := Parse("pq", "test", []string{
		"--start=2024-01-01T01:00:00Z", "--end=2024-01-01T00:00:00Z", "json",
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestParseMissingProgramRejected(t *testing.T) {
	_, err := Parse("pq", "test", []string{"--verbose"})
	if err == nil {
		t.Fatalf("expected an error for a missing program argument")
	}
}
