package model

import "github.com/iximiuz/pq/pkg/labels"

// Sample is a single scalar observation: a value, the instant it was taken,
// and the label set identifying its series (spec §3).
//
// Samples are shared by reference between every Cursor fed from the same
// SampleReader (spec §4.2); they are never mutated after construction, so a
// plain struct (not a pointer-with-locking) is enough for the single-
// threaded pull model described in spec §5.
type Sample struct {
	Value     float64
	Timestamp Timestamp
	Labels    labels.Labels
}

// Label returns the value of the named label and whether it was present.
func (s Sample) Label(name string) (string, bool) {
	if !s.Labels.Has(name) {
		return "", false
	}
	return s.Labels.Get(name), true
}
