// Package timefmt implements the time-format heuristics the mapper stage
// uses to turn a captured timestamp field into a model.Timestamp (spec §6
// "Time formats accepted for timestamps in input").
//
// Grounded on the original Rust implementation's src/utils/time.rs
// try_parse_time, which tries a fixed list of layouts in order and returns
// the first match; this package keeps that exact order (RFC3339, RFC2822,
// Common Log, ISO-like with optional "T" separator and fractional seconds,
// 13-digit millis, 10-digit seconds) rather than reinventing the heuristic.
package timefmt

import (
	"strconv"
	"strings"
	"time"

	"github.com/iximiuz/pq/pkg/model"
)

// commonLogLayout is Nginx/Apache's "Common Log Format" timestamp, e.g.
// "10/Oct/2000:13:55:36 -0700".
const commonLogLayout = "02/Jan/2006:15:04:05 -0700"

// guessLayouts are tried in order after RFC3339/RFC2822 fail. Each is tried
// both with and without a trailing " -0700"-style zone offset, since the
// offset is optional per spec §6.
var guessLayouts = []string{
	commonLogLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02T15:04:05.999999999 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05 -0700",
}

// Parse tries every known layout in turn and returns the first match.
// ok is false if none of the heuristics recognized s.
func Parse(s string) (ts model.Timestamp, ok bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.FromTime(t), true
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return model.FromTime(t), true
	}
	if t, err := time.Parse(time.RFC822Z, s); err == nil {
		return model.FromTime(t), true
	}

	for _, layout := range guessLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.FromTime(t), true
		}
	}

	if isAllDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		switch len(s) {
		case 10:
			return model.Timestamp(n * 1000), true
		case 13:
			return model.Timestamp(n), true
		default:
			return 0, false
		}
	}

	return 0, false
}

// ParseLayout parses s using an explicit Go reference-time layout (spec §6's
// ":ts <format>" mapper field clause), used when the caller knows the exact
// timestamp shape and doesn't want the heuristic chain.
func ParseLayout(s, layout string) (model.Timestamp, error) {
	if strings.Contains(layout, "-0700") || strings.Contains(layout, "Z07:00") {
		t, err := time.Parse(layout, s)
		if err != nil {
			return 0, err
		}
		return model.FromTime(t), nil
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, err
	}
	return model.FromTime(t), nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
