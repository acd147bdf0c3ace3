// Package labels implements the label-set and label-matcher algebra used
// throughout the query evaluator (spec §3 "Labels", "LabelMatcher").
//
// The underlying representation is borrowed from
// github.com/prometheus/prometheus/model/labels, the same package the
// teacher's query engine imports directly. Its Labels type is already kept
// sorted by name, which is exactly the "sort pairs" step Signature needs, so
// With/Without/Signature are layered on top via labels.Builder rather than
// reinvented.
package labels

import (
	"strings"

	promlabels "github.com/prometheus/prometheus/model/labels"
)

// MetricName is the reserved label holding the series' metric name.
const MetricName = promlabels.MetricName

// sigSep separates both name/value and consecutive pairs in a Signature.
// The spec calls out the concrete byte as an implementation detail that only
// needs to be stable within one process; it must not show up in a label name
// (names are restricted to identifier characters) to stay unambiguous.
const sigSep = byte(0xFF)

// Labels is an immutable name-to-value mapping. The zero value is the empty
// label set.
type Labels struct {
	inner promlabels.Labels
}

// FromMap builds a Labels from an unordered map.
func FromMap(m map[string]string) Labels {
	return Labels{inner: promlabels.FromMap(m)}
}

// FromStrings builds a Labels from alternating name, value pairs.
func FromStrings(ss ...string) Labels {
	return Labels{inner: promlabels.FromStrings(ss...)}
}

// Empty is the label set with no members.
func Empty() Labels { return Labels{} }

// Get returns the value for name, or "" if absent.
func (l Labels) Get(name string) string { return l.inner.Get(name) }

// Has reports whether name is present.
func (l Labels) Has(name string) bool { return l.inner.Has(name) }

// Len returns the number of label pairs, including __name__ if set.
func (l Labels) Len() int { return l.inner.Len() }

// Map returns a fresh map copy of the label set.
func (l Labels) Map() map[string]string { return l.inner.Map() }

// Range calls f for every (name, value) pair in sorted-by-name order.
func (l Labels) Range(f func(name, value string)) {
	l.inner.Range(func(lb promlabels.Label) { f(lb.Name, lb.Value) })
}

// Name returns the metric name (the __name__ label), or "" if unset.
func (l Labels) Name() string { return l.inner.Get(MetricName) }

// SetName returns a copy with __name__ set to name.
func (l Labels) SetName(name string) Labels {
	b := promlabels.NewBuilder(l.inner)
	b.Set(MetricName, name)
	return Labels{inner: b.Labels()}
}

// Set returns a copy with name set to value, used by operations that graft
// a single label onto an otherwise unrelated label set (e.g. count_values'
// synthetic value label, or group_left/group_right's include overlay).
func (l Labels) Set(name, value string) Labels {
	b := promlabels.NewBuilder(l.inner)
	b.Set(name, value)
	return Labels{inner: b.Labels()}
}

// DropName returns a copy with __name__ removed. Every value-mutating
// evaluator operation (unary negation, arithmetic, most functions) drops the
// metric name per spec §4.4/§4.5/§4.6.
func (l Labels) DropName() Labels {
	if !l.Has(MetricName) {
		return l
	}
	b := promlabels.NewBuilder(l.inner)
	b.Del(MetricName)
	return Labels{inner: b.Labels()}
}

// With returns the subset of labels named in names, always excluding
// __name__ (spec §3: "both always exclude __name__").
func (l Labels) With(names map[string]struct{}) Labels {
	if len(names) == 0 {
		return Empty()
	}
	b := promlabels.NewBuilder(promlabels.EmptyLabels())
	l.Range(func(name, value string) {
		if name == MetricName {
			return
		}
		if _, ok := names[name]; ok {
			b.Set(name, value)
		}
	})
	return Labels{inner: b.Labels()}
}

// Without returns the labels not named in names, always excluding __name__.
func (l Labels) Without(names map[string]struct{}) Labels {
	b := promlabels.NewBuilder(l.inner)
	b.Del(MetricName)
	for name := range names {
		b.Del(name)
	}
	return Labels{inner: b.Labels()}
}

// Signature produces a canonical byte sequence suitable for use as a map
// key: sorted (name, value) pairs joined by a delimiter byte that cannot
// appear in a label name. Two Labels with the same pairs in any insertion
// order always produce the same Signature (spec §8 invariant 7).
func (l Labels) Signature() string {
	if l.inner.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	l.inner.Range(func(lb promlabels.Label) {
		sb.WriteString(lb.Name)
		sb.WriteByte(sigSep)
		sb.WriteString(lb.Value)
		sb.WriteByte(sigSep)
	})
	return sb.String()
}

// String renders the labels Prometheus-style, e.g. `{job="a", x="1"}`.
func (l Labels) String() string { return l.inner.String() }

// IsEmpty reports whether the label set has no members.
func (l Labels) IsEmpty() bool { return l.inner.IsEmpty() }

// NameSet builds the name-set argument With/Without expect from a slice of
// label names, as produced by the parser for `by(...)`/`without(...)`/
// `on(...)`/`ignoring(...)` modifiers.
func NameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
