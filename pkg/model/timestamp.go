// Package model holds the data types the decoder/mapper stages produce and
// the evaluator consumes: Timestamp, Sample and Record (spec §3).
package model

import "time"

// Timestamp is a signed 64-bit millisecond instant, matching spec §3.
type Timestamp int64

// MinTimestamp and MaxTimestamp bound the representable range; used as
// sentinels by range-bound checks (e.g. an unset --end).
const (
	MinTimestamp = Timestamp(-1 << 63)
	MaxTimestamp = Timestamp(1<<63 - 1)
)

// FromTime converts a time.Time to a millisecond Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts a Timestamp back to a time.Time (UTC).
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Add returns t shifted forward by d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d.Milliseconds())
}

// Sub returns t shifted backward by d.
func (t Timestamp) Sub(d time.Duration) Timestamp {
	return t - Timestamp(d.Milliseconds())
}

// Before reports whether t is strictly earlier than other.
func (t Timestamp) Before(other Timestamp) bool { return t < other }

// After reports whether t is strictly later than other.
func (t Timestamp) After(other Timestamp) bool { return t > other }
