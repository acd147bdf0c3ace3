package model

import (
	"sort"

	"github.com/iximiuz/pq/pkg/labels"
)

// LineField is the synthetic numeric field the mapper injects into every
// record, holding the 1-based input line number (spec §3: "The mapper
// injects a synthetic value __line__ = line_no into every record").
const LineField = "__line__"

// Record is what the Mapper stage produces from one decoded Entry: an
// optional timestamp, a label set, and a bag of named numeric values (spec
// §3). A Record without a timestamp is skipped by the evaluator — the
// SampleReader never explodes it into samples.
type Record struct {
	LineNo    int
	Timestamp *Timestamp // nil if the entry carried no parseable timestamp
	Labels    labels.Labels
	Values    map[string]float64
}

// HasTimestamp reports whether the record can be turned into samples.
func (r Record) HasTimestamp() bool { return r.Timestamp != nil }

// Samples explodes the record into one Sample per numeric field, each
// carrying the record's labels plus __name__ set to the field name (spec
// §4.2: "pulls the next timestamped record, explodes it into one sample per
// numeric field"). Fields are emitted in name order so that samples derived
// from one record reach every cursor in a deterministic order (spec §5).
func (r Record) Samples() []Sample {
	if !r.HasTimestamp() {
		return nil
	}
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	samples := make([]Sample, 0, len(names))
	for _, name := range names {
		samples = append(samples, Sample{
			Value:     r.Values[name],
			Timestamp: *r.Timestamp,
			Labels:    r.Labels.SetName(name),
		})
	}
	return samples
}
