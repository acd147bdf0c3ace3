package engine

import (
	"sort"
	"time"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
)

// matrixEntry holds one series' buffered samples, oldest first — the order
// a single cursor naturally delivers them in (spec §5: "records flow
// strictly in arrival order").
type matrixEntry struct {
	labels  labels.Labels
	samples []model.Sample
}

// sampleMatrix is the per-selector state spec §4.3 calls the SampleMatrix:
// a signature-keyed map of series buffers, plus the timestamp of the
// newest sample seen across all series.
type sampleMatrix struct {
	entries              map[string]*matrixEntry
	latestSampleTimestamp model.Timestamp
	hasLatest             bool
}

func newSampleMatrix() *sampleMatrix {
	return &sampleMatrix{entries: make(map[string]*matrixEntry)}
}

func (m *sampleMatrix) push(s model.Sample) {
	sig := s.Labels.Signature()
	e, ok := m.entries[sig]
	if !ok {
		e = &matrixEntry{labels: s.Labels}
		m.entries[sig] = e
	}
	e.samples = append(e.samples, s)
	if !m.hasLatest || s.Timestamp.After(m.latestSampleTimestamp) {
		m.latestSampleTimestamp = s.Timestamp
		m.hasLatest = true
	}
}

func (m *sampleMatrix) isEmpty() bool { return len(m.entries) == 0 }

// purgeStaleBefore drops leading samples at or before threshold from every
// series, and drops series whose newest remaining sample is still stale
// (spec §4.3 step 4, tie-break: "a sample at exactly next_instant − lookback
// is stale").
func (m *sampleMatrix) purgeStaleBefore(threshold model.Timestamp) {
	for sig, e := range m.entries {
		i := 0
		for i < len(e.samples) && e.samples[i].Timestamp <= threshold {
			i++
		}
		e.samples = e.samples[i:]
		if len(e.samples) == 0 {
			delete(m.entries, sig)
		}
	}
}

func (m *sampleMatrix) sortedSignatures() []string {
	sigs := make([]string, 0, len(m.entries))
	for sig := range m.entries {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// emitInstant picks, per series, the newest sample in (next−window, next]
// (spec §4.3 step 3, instant-vector branch).
func (m *sampleMatrix) emitInstant(next model.Timestamp, window time.Duration) []VectorSample {
	lower := next.Sub(window)
	var out []VectorSample
	for _, sig := range m.sortedSignatures() {
		e := m.entries[sig]
		for i := len(e.samples) - 1; i >= 0; i-- {
			s := e.samples[i]
			if s.Timestamp > next {
				continue
			}
			if s.Timestamp > lower {
				out = append(out, VectorSample{Labels: e.labels, Value: s.Value})
			}
			break
		}
	}
	return out
}

// emitRange collects, per series, every sample in (next−duration, next],
// newest first (spec §4.3 step 3, range-vector branch).
func (m *sampleMatrix) emitRange(next model.Timestamp, duration time.Duration) []RangeVectorSeries {
	lower := next.Sub(duration)
	var out []RangeVectorSeries
	for _, sig := range m.sortedSignatures() {
		e := m.entries[sig]
		var pts []model.Sample
		for i := len(e.samples) - 1; i >= 0; i-- {
			s := e.samples[i]
			if s.Timestamp > next {
				continue
			}
			if s.Timestamp <= lower {
				break
			}
			pts = append(pts, s)
		}
		if len(pts) > 0 {
			out = append(out, RangeVectorSeries{Labels: e.labels, Samples: pts})
		}
	}
	return out
}
