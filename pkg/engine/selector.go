package engine

import (
	"time"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// vectorSelectorEvaluator is the heart of the engine (spec §4.3): it pulls
// from its own cursor, maintains a sampleMatrix, and emits one
// InstantVector or RangeVector tick per Next() call depending on whether
// the selector carried a range duration.
type vectorSelectorEvaluator struct {
	cursor   *Cursor
	matchers []labels.Matcher
	interval time.Duration
	// window is the lookback duration for an instant selector, or the
	// selector's own range duration when one was given — spec §4.3 lists
	// it as "lookback (overridden by the selector's range duration, if
	// any)".
	window   time.Duration
	rangeDur *time.Duration

	matrix      *sampleMatrix
	nextInstant model.Timestamp
	initialized bool
	cursorDone  bool
	exhausted   bool
}

func (v *vectorSelectorEvaluator) Kind() ast.ValueKind {
	if v.rangeDur != nil {
		return ast.KindRangeVector
	}
	return ast.KindInstantVector
}

func (v *vectorSelectorEvaluator) matches(l labels.Labels) bool {
	for _, m := range v.matchers {
		if !l.Has(m.Name()) {
			return false
		}
		if !m.Matches(l.Get(m.Name())) {
			return false
		}
	}
	return true
}

func (v *vectorSelectorEvaluator) Next() (QueryValue, bool, error) {
	if v.exhausted {
		return QueryValue{}, false, nil
	}

	// Step 1 (+2): fill until the matrix has seen something past
	// next_instant, initializing next_instant from the first matching
	// sample if no explicit start was given.
	for !v.cursorDone && (!v.initialized || v.matrix.latestSampleTimestamp <= v.nextInstant) {
		s, ok, err := v.cursor.Read()
		if err != nil {
			return QueryValue{}, false, err
		}
		if !ok {
			v.cursorDone = true
			break
		}
		if !v.matches(s.Labels) {
			continue
		}
		v.matrix.push(s)
		if !v.initialized {
			// sample_ts + min(window, interval) - interval: when interval
			// does not exceed window (the common case — a global lookback
			// or an explicit range duration is rarely shorter than the
			// step), this collapses to sample_ts exactly, so the first
			// tick lands on the first sample instead of interval-1ms
			// later.
			m := v.window
			if v.interval < m {
				m = v.interval
			}
			v.nextInstant = s.Timestamp.Add(m).Sub(v.interval)
			v.initialized = true
		}
	}

	if !v.initialized {
		v.exhausted = true
		return QueryValue{}, false, nil
	}

	// Step 3: emit.
	var qv QueryValue
	if v.rangeDur != nil {
		qv = QueryValue{
			Kind:      ast.KindRangeVector,
			Timestamp: v.nextInstant,
			Matrix:    v.matrix.emitRange(v.nextInstant, *v.rangeDur),
		}
	} else {
		qv = QueryValue{
			Kind:      ast.KindInstantVector,
			Timestamp: v.nextInstant,
			Vector:    v.matrix.emitInstant(v.nextInstant, v.window),
		}
	}

	// Step 4: advance and purge. Whether this exhausts the stream is
	// decided for the *next* call, since this tick's value was already
	// computed above.
	threshold := v.nextInstant.Sub(v.window)
	v.nextInstant = v.nextInstant.Add(v.interval)
	v.matrix.purgeStaleBefore(threshold)
	if v.matrix.isEmpty() && v.cursorDone {
		v.exhausted = true
	}

	return qv, true, nil
}
