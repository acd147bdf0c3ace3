// Package ast defines the typed expression tree the parser produces (spec
// §3 "Expression tree") and the QueryValue variants each node emits when
// the evaluator pulls from it (spec §3 "QueryValue").
package ast

import (
	"fmt"
	"strings"
	"time"

	"github.com/iximiuz/pq/pkg/labels"
)

// ValueKind is the closed set of result types a node can produce. Spec §9
// calls for "a closed set of three variants ... each iterator exposes its
// static kind for build-time assertions" rather than a runtime type switch,
// so every Expr reports its ValueKind without evaluating anything.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindInstantVector
	KindRangeVector
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindInstantVector:
		return "instant vector"
	case KindRangeVector:
		return "range vector"
	default:
		return "unknown"
	}
}

// Expr is any node in the parsed query tree.
type Expr interface {
	fmt.Stringer
	// Kind reports the ValueKind this node produces, without evaluating.
	Kind() ValueKind
	exprNode()
}

// NumberLiteral is a bare scalar constant, e.g. `2`, `-1.5`.
type NumberLiteral struct {
	Value float64
}

func (e *NumberLiteral) Kind() ValueKind { return KindScalar }
func (e *NumberLiteral) exprNode()       {}
func (e *NumberLiteral) String() string  { return formatFloat(e.Value) }

// VectorSelector is a leaf expression selecting series by label matchers,
// optionally over a trailing range duration (spec §3).
type VectorSelector struct {
	Matchers []labels.Matcher
	Range    *time.Duration // nil => instant vector selector
}

// NewVectorSelector builds a VectorSelector, enforcing spec §3's
// construction invariants: "if a metric name prefix is given, no other
// __name__ matcher may appear; otherwise at least one matcher must not
// match the empty string (forbids selectors that would match all
// series)". hadName reports whether the selector was introduced by a bare
// metric name (e.g. `foo{...}`) rather than braces alone (e.g. `{...}`).
// Grounded on the original Rust implementation's VectorSelector::new
// (src/query/parser/ast.rs), which performs the identical two checks.
func NewVectorSelector(matchers []labels.Matcher, hadName bool, rng *time.Duration) (*VectorSelector, error) {
	matchesEverything := true
	hasNameMatcher := false
	for _, m := range matchers {
		if !m.MatchesEmpty() {
			matchesEverything = false
		}
		if m.IsNameMatcher() {
			hasNameMatcher = true
		}
	}

	if hadName && hasNameMatcher {
		return nil, fmt.Errorf("ast: potentially ambiguous metric name match")
	}
	if !hadName && matchesEverything {
		return nil, fmt.Errorf("ast: vector selector must contain at least one non-empty matcher")
	}

	return &VectorSelector{Matchers: matchers, Range: rng}, nil
}

func (e *VectorSelector) Kind() ValueKind {
	if e.Range != nil {
		return KindRangeVector
	}
	return KindInstantVector
}
func (e *VectorSelector) exprNode() {}

func (e *VectorSelector) String() string {
	var sb strings.Builder
	name := ""
	var rest []labels.Matcher
	for _, m := range e.Matchers {
		if m.IsNameMatcher() && m.Op() == labels.MatchEqual && name == "" {
			name = m.Value()
			continue
		}
		rest = append(rest, m)
	}
	sb.WriteString(name)
	if len(rest) > 0 || name == "" {
		sb.WriteByte('{')
		for i, m := range rest {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.String())
		}
		sb.WriteByte('}')
	}
	if e.Range != nil {
		sb.WriteByte('[')
		sb.WriteString(FormatDuration(*e.Range))
		sb.WriteByte(']')
	}
	return sb.String()
}

// UnaryOp is the sign prefix applied to an expression.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
)

func (op UnaryOp) String() string {
	if op == UnaryMinus {
		return "-"
	}
	return "+"
}

// UnaryExpr negates (or passes through) its operand.
type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

func (e *UnaryExpr) Kind() ValueKind { return e.Expr.Kind() }
func (e *UnaryExpr) exprNode()       {}
func (e *UnaryExpr) String() string  { return e.Op.String() + e.Expr.String() }

// BinaryOp enumerates the arithmetic, comparison, and logical operators
// spec §4.1 lists, ordered low-to-high by precedence.
type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpAnd
	OpUnless
	OpEql
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

// Precedence returns the operator's binding power; higher binds tighter.
func (op BinaryOp) Precedence() int {
	switch op {
	case OpOr:
		return 10
	case OpAnd, OpUnless:
		return 20
	case OpEql, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return 30
	case OpAdd, OpSub:
		return 40
	case OpMul, OpDiv, OpMod:
		return 50
	case OpPow:
		return 60
	default:
		return 0
	}
}

// RightAssociative reports whether the operator groups right-to-left; only
// `^` does (spec §4.1).
func (op BinaryOp) RightAssociative() bool { return op == OpPow }

// IsComparison reports whether op is one of `== >= > < <= !=`.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEql, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

// IsLogical reports whether op is `and`, `or`, or `unless` — the vector-
// vector-only set-operators, which the parser accepts with neither
// on/ignoring nor group_left/group_right.
func (op BinaryOp) IsLogical() bool {
	switch op {
	case OpAnd, OpOr, OpUnless:
		return true
	default:
		return false
	}
}

func (op BinaryOp) String() string {
	switch op {
	case OpOr:
		return "or"
	case OpAnd:
		return "and"
	case OpUnless:
		return "unless"
	case OpEql:
		return "=="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpPow:
		return "^"
	default:
		return "?"
	}
}

// VectorMatchCardinality describes a group_left/group_right modifier.
type VectorMatchCardinality int

const (
	MatchOneToOne VectorMatchCardinality = iota
	MatchManyToOne
	MatchOneToMany
)

// GroupModifier carries a group_left(...)/group_right(...) clause.
type GroupModifier struct {
	Card    VectorMatchCardinality
	Include []string
}

// LabelMatching carries an on(...)/ignoring(...) clause.
type LabelMatching struct {
	On     bool // true => on(...), false => ignoring(...)
	Labels []string
}

// BinaryExpr is a binary arithmetic/comparison/logical operation.
type BinaryExpr struct {
	Op            BinaryOp
	LHS, RHS      Expr
	Bool          bool // `bool` modifier, only valid on comparisons
	LabelMatching *LabelMatching
	GroupModifier *GroupModifier
}

func (e *BinaryExpr) Kind() ValueKind {
	if e.LHS.Kind() == KindScalar && e.RHS.Kind() == KindScalar {
		return KindScalar
	}
	return KindInstantVector
}
func (e *BinaryExpr) exprNode() {}

func (e *BinaryExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.LHS.String())
	sb.WriteByte(' ')
	sb.WriteString(e.Op.String())
	if e.Bool {
		sb.WriteString(" bool")
	}
	if e.LabelMatching != nil {
		if e.LabelMatching.On {
			sb.WriteString(" on(")
		} else {
			sb.WriteString(" ignoring(")
		}
		sb.WriteString(strings.Join(e.LabelMatching.Labels, ", "))
		sb.WriteByte(')')
	}
	if e.GroupModifier != nil {
		if e.GroupModifier.Card == MatchManyToOne {
			sb.WriteString(" group_left(")
		} else {
			sb.WriteString(" group_right(")
		}
		sb.WriteString(strings.Join(e.GroupModifier.Include, ", "))
		sb.WriteByte(')')
	}
	sb.WriteByte(' ')
	sb.WriteString(e.RHS.String())
	return sb.String()
}

// AggregateOp enumerates the aggregation operators spec §4.4 lists.
type AggregateOp int

const (
	AggSum AggregateOp = iota
	AggMin
	AggMax
	AggAvg
	AggCount
	AggGroup
	AggStddev
	AggStdvar
	AggTopK
	AggBottomK
	AggQuantile
	AggCountValues
)

func (op AggregateOp) String() string {
	switch op {
	case AggSum:
		return "sum"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	case AggGroup:
		return "group"
	case AggStddev:
		return "stddev"
	case AggStdvar:
		return "stdvar"
	case AggTopK:
		return "topk"
	case AggBottomK:
		return "bottomk"
	case AggQuantile:
		return "quantile"
	case AggCountValues:
		return "count_values"
	default:
		return "?"
	}
}

// RequiresParam reports whether op takes a leading scalar/string parameter
// (spec §4.1: "count_values, topk, bottomk, quantile require a parameter").
func (op AggregateOp) RequiresParam() bool {
	switch op {
	case AggTopK, AggBottomK, AggQuantile, AggCountValues:
		return true
	default:
		return false
	}
}

// AggregateModifier carries a by(...)/without(...) clause.
type AggregateModifier struct {
	By     bool // true => by(...), false => without(...)
	Labels []string
}

// AggregateExpr is an aggregation over an inner instant vector.
type AggregateExpr struct {
	Op       AggregateOp
	Inner    Expr
	Modifier *AggregateModifier
	// Param is the scalar argument for topk/bottomk/quantile, or the label
	// name for count_values. Nil when Op.RequiresParam() is false.
	Param Expr
}

func (e *AggregateExpr) Kind() ValueKind { return KindInstantVector }
func (e *AggregateExpr) exprNode()       {}

func (e *AggregateExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.Op.String())
	if e.Modifier != nil {
		if e.Modifier.By {
			sb.WriteString(" by(")
		} else {
			sb.WriteString(" without(")
		}
		sb.WriteString(strings.Join(e.Modifier.Labels, ", "))
		sb.WriteByte(')')
	}
	sb.WriteString(" (")
	if e.Param != nil {
		sb.WriteString(e.Param.String())
		sb.WriteString(", ")
	}
	sb.WriteString(e.Inner.String())
	sb.WriteByte(')')
	return sb.String()
}

// FunctionCall is a call to a known function name.
type FunctionCall struct {
	Name string
	Args []Expr
	kind ValueKind
}

// NewFunctionCall builds a FunctionCall, computing its static result kind.
func NewFunctionCall(name string, args []Expr) *FunctionCall {
	kind := KindInstantVector
	if name == "vector" {
		kind = KindInstantVector
	}
	return &FunctionCall{Name: name, Args: args, kind: kind}
}

func (e *FunctionCall) Kind() ValueKind { return e.kind }
func (e *FunctionCall) exprNode()       {}

func (e *FunctionCall) String() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	sb.WriteByte('(')
	for i, a := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// StringLiteral is a quoted string argument; Build accepts it only as
// count_values' label-name parameter.
type StringLiteral struct {
	Value string
}

func (e *StringLiteral) Kind() ValueKind { return KindScalar }
func (e *StringLiteral) exprNode()       {}
func (e *StringLiteral) String() string  { return fmt.Sprintf("%q", e.Value) }

// Parentheses is an explicitly parenthesized sub-expression, kept in the
// tree so pretty-printing round-trips (spec §8 invariant 8).
type Parentheses struct {
	Inner Expr
}

func (e *Parentheses) Kind() ValueKind { return e.Inner.Kind() }
func (e *Parentheses) exprNode()       {}
func (e *Parentheses) String() string  { return "(" + e.Inner.String() + ")" }

// ParseDuration parses a duration literal per spec §4.1: digit-unit pairs
// in strictly descending unit order (y,w,d,h,m,s,ms), each unit appearing
// at most once, with a positive sum. text must contain no whitespace.
func ParseDuration(text string) (time.Duration, error) {
	order := map[string]int{"y": 0, "w": 1, "d": 2, "h": 3, "m": 4, "s": 5, "ms": 6}
	mult := map[string]time.Duration{
		"y":  365 * 24 * time.Hour,
		"w":  7 * 24 * time.Hour,
		"d":  24 * time.Hour,
		"h":  time.Hour,
		"m":  time.Minute,
		"s":  time.Second,
		"ms": time.Millisecond,
	}

	var total time.Duration
	lastRank := -1
	rest := text
	for len(rest) > 0 {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q: expected digits", text)
		}
		digits := rest[:i]
		rest = rest[i:]

		unit := ""
		if strings.HasPrefix(rest, "ms") {
			unit = "ms"
		} else if len(rest) > 0 {
			unit = rest[:1]
		}
		if _, ok := order[unit]; !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", text, unit)
		}
		rest = rest[len(unit):]

		rank := order[unit]
		if rank <= lastRank {
			return 0, fmt.Errorf("invalid duration %q: unit %q out of order", text, unit)
		}
		lastRank = rank

		var n int64
		for _, c := range digits {
			n = n*10 + int64(c-'0')
		}
		total += time.Duration(n) * mult[unit]
	}
	if total <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", text)
	}
	return total, nil
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}

// FormatDuration renders a duration using the largest spec §4.1 units that
// evenly describe it, falling back to milliseconds.
func FormatDuration(d time.Duration) string {
	units := []struct {
		name string
		dur  time.Duration
	}{
		{"y", 365 * 24 * time.Hour},
		{"w", 7 * 24 * time.Hour},
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
		{"ms", time.Millisecond},
	}
	var sb strings.Builder
	remaining := d
	for _, u := range units {
		if remaining < u.dur {
			continue
		}
		n := remaining / u.dur
		remaining -= n * u.dur
		fmt.Fprintf(&sb, "%d%s", n, u.name)
	}
	if sb.Len() == 0 {
		return "0s"
	}
	return sb.String()
}
