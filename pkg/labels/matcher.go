package labels

import (
	"fmt"

	promlabels "github.com/prometheus/prometheus/model/labels"
)

// MatchOp is one of the four matcher operators spec §3 defines.
type MatchOp int

const (
	MatchEqual MatchOp = iota
	MatchNotEqual
	MatchRegexp
	MatchNotRegexp
)

func (op MatchOp) String() string {
	switch op {
	case MatchEqual:
		return "="
	case MatchNotEqual:
		return "!="
	case MatchRegexp:
		return "=~"
	case MatchNotRegexp:
		return "!~"
	default:
		return "?"
	}
}

func (op MatchOp) toProm() promlabels.MatchType {
	switch op {
	case MatchEqual:
		return promlabels.MatchEqual
	case MatchNotEqual:
		return promlabels.MatchNotEqual
	case MatchRegexp:
		return promlabels.MatchRegexp
	case MatchNotRegexp:
		return promlabels.MatchNotRegexp
	default:
		panic(fmt.Sprintf("labels: unknown match op %d", op))
	}
}

// Matcher is a single (label_name, op, value) constraint. Regex matchers are
// compiled to an anchored `^(?:value)$` pattern by the wrapped
// prometheus/model/labels constructor, matching spec §3 exactly.
type Matcher struct {
	inner *promlabels.Matcher
}

// NewMatcher builds and compiles a Matcher. The only failure mode is an
// invalid regex for MatchRegexp/MatchNotRegexp.
func NewMatcher(op MatchOp, name, value string) (Matcher, error) {
	m, err := promlabels.NewMatcher(op.toProm(), name, value)
	if err != nil {
		return Matcher{}, fmt.Errorf("compiling matcher %s%s%q: %w", name, op, value, err)
	}
	return Matcher{inner: m}, nil
}

// Name is the label name this matcher constrains.
func (m Matcher) Name() string { return m.inner.Name }

// Op is the matcher's comparison operator.
func (m Matcher) Op() MatchOp {
	switch m.inner.Type {
	case promlabels.MatchEqual:
		return MatchEqual
	case promlabels.MatchNotEqual:
		return MatchNotEqual
	case promlabels.MatchRegexp:
		return MatchRegexp
	case promlabels.MatchNotRegexp:
		return MatchNotRegexp
	default:
		panic("labels: unknown prometheus match type")
	}
}

// Value is the matcher's comparison operand.
func (m Matcher) Value() string { return m.inner.Value }

// IsNameMatcher reports whether this matcher constrains __name__.
func (m Matcher) IsNameMatcher() bool { return m.inner.Name == MetricName }

// Matches reports whether v satisfies the matcher.
func (m Matcher) Matches(v string) bool { return m.inner.Matches(v) }

// MatchesEmpty reports whether the matcher matches the empty string — used
// by the VectorSelector construction invariant in spec §3 ("a matcher
// 'matches everything' iff it matches the empty string").
func (m Matcher) MatchesEmpty() bool { return m.inner.Matches("") }

// String renders the matcher as `name<op>"value"`.
func (m Matcher) String() string { return m.inner.String() }
