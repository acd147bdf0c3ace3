package engine

import (
	"fmt"
	"math"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// epsilon is the tolerance scalar equality/inequality uses (spec §4.5:
// "equality uses |a-b| < epsilon for ==/!=").
const epsilon = 1e-9

// peekEvaluator adds one-tick lookahead to an Evaluator, needed by the
// vector-vector time-alignment rule in spec §4.5 ("peek both sides").
type peekEvaluator struct {
	inner Evaluator
	have  bool
	val   QueryValue
	ok    bool
	err   error
}

func (p *peekEvaluator) peek() (QueryValue, bool, error) {
	if !p.have {
		p.val, p.ok, p.err = p.inner.Next()
		p.have = true
	}
	return p.val, p.ok, p.err
}

func (p *peekEvaluator) consume() { p.have = false }

// binaryEvaluator implements spec §4.5: dispatch on (lhs_kind, rhs_kind)
// to scalar-scalar, scalar-vector, vector-scalar, or vector-vector
// evaluation.
type binaryEvaluator struct {
	op            ast.BinaryOp
	lhs, rhs      Evaluator
	lhsKind       ast.ValueKind
	rhsKind       ast.ValueKind
	isBool        bool
	labelMatching *ast.LabelMatching
	groupModifier *ast.GroupModifier

	lhsPeek *peekEvaluator
	rhsPeek *peekEvaluator
}

func (e *binaryEvaluator) Kind() ast.ValueKind {
	if e.lhsKind == ast.KindScalar && e.rhsKind == ast.KindScalar {
		return ast.KindScalar
	}
	return ast.KindInstantVector
}

func (e *binaryEvaluator) Next() (QueryValue, bool, error) {
	switch {
	case e.lhsKind == ast.KindScalar && e.rhsKind == ast.KindScalar:
		return e.nextScalarScalar()
	case e.lhsKind == ast.KindScalar:
		return e.nextScalarVector(true)
	case e.rhsKind == ast.KindScalar:
		return e.nextScalarVector(false)
	default:
		return e.nextVectorVector()
	}
}

func (e *binaryEvaluator) nextScalarScalar() (QueryValue, bool, error) {
	lv, lok, lerr := e.lhs.Next()
	if lerr != nil {
		return QueryValue{}, false, lerr
	}
	rv, rok, rerr := e.rhs.Next()
	if rerr != nil {
		return QueryValue{}, false, rerr
	}
	if !lok || !rok {
		return QueryValue{}, false, nil
	}
	return QueryValue{
		Kind:      ast.KindScalar,
		Timestamp: lv.Timestamp,
		Scalar:    scalarScalar(e.op, lv.Scalar, rv.Scalar, e.isBool),
	}, true, nil
}

func scalarScalar(op ast.BinaryOp, a, b float64, isBool bool) float64 {
	if op.IsComparison() {
		return boolToFloat(compare(op, a, b))
	}
	return arith(op, a, b)
}

func (e *binaryEvaluator) nextScalarVector(scalarOnLeft bool) (QueryValue, bool, error) {
	scalarEval, vectorEval := e.lhs, e.rhs
	if !scalarOnLeft {
		scalarEval, vectorEval = e.rhs, e.lhs
	}
	sv, sok, serr := scalarEval.Next()
	if serr != nil {
		return QueryValue{}, false, serr
	}
	vv, vok, verr := vectorEval.Next()
	if verr != nil {
		return QueryValue{}, false, verr
	}
	if !sok || !vok {
		return QueryValue{}, false, nil
	}

	var out []VectorSample
	for _, s := range vv.Vector {
		a, b := sv.Scalar, s.Value
		if !scalarOnLeft {
			a, b = s.Value, sv.Scalar
		}
		if e.op.IsComparison() {
			pass := compare(e.op, a, b)
			if e.isBool {
				out = append(out, VectorSample{Labels: s.Labels.DropName(), Value: boolToFloat(pass)})
				continue
			}
			if pass {
				out = append(out, VectorSample{Labels: s.Labels, Value: s.Value})
			}
			continue
		}
		out = append(out, VectorSample{Labels: s.Labels.DropName(), Value: arith(e.op, a, b)})
	}
	return QueryValue{Kind: ast.KindInstantVector, Timestamp: vv.Timestamp, Vector: out}, true, nil
}

func (e *binaryEvaluator) nextVectorVector() (QueryValue, bool, error) {
	lv, lok, lerr := e.lhsPeek.peek()
	if lerr != nil {
		return QueryValue{}, false, lerr
	}
	rv, rok, rerr := e.rhsPeek.peek()
	if rerr != nil {
		return QueryValue{}, false, rerr
	}
	if !lok || !rok {
		return QueryValue{}, false, nil
	}

	if lv.Timestamp != rv.Timestamp {
		if lv.Timestamp < rv.Timestamp {
			e.lhsPeek.consume()
			return QueryValue{Kind: ast.KindInstantVector, Timestamp: lv.Timestamp}, true, nil
		}
		e.rhsPeek.consume()
		return QueryValue{Kind: ast.KindInstantVector, Timestamp: rv.Timestamp}, true, nil
	}

	e.lhsPeek.consume()
	e.rhsPeek.consume()
	out, err := e.pair(lv.Vector, rv.Vector)
	if err != nil {
		return QueryValue{}, false, err
	}
	return QueryValue{Kind: ast.KindInstantVector, Timestamp: lv.Timestamp, Vector: out}, true, nil
}

func (e *binaryEvaluator) pair(lhs, rhs []VectorSample) ([]VectorSample, error) {
	if e.op.IsLogical() {
		return e.evalLogical(lhs, rhs), nil
	}
	if e.groupModifier != nil {
		return e.evalGrouped(lhs, rhs)
	}
	return e.evalOneToOne(lhs, rhs)
}

func (e *binaryEvaluator) matchKey(l labels.Labels) string {
	if e.labelMatching == nil {
		return l.Without(labels.NameSet(nil)).Signature()
	}
	set := labels.NameSet(e.labelMatching.Labels)
	if e.labelMatching.On {
		return l.With(set).Signature()
	}
	return l.Without(set).Signature()
}

func (e *binaryEvaluator) evalLogical(lhs, rhs []VectorSample) []VectorSample {
	rhsSigs := make(map[string]struct{}, len(rhs))
	for _, s := range rhs {
		rhsSigs[e.matchKey(s.Labels)] = struct{}{}
	}

	var out []VectorSample
	switch e.op {
	case ast.OpAnd:
		for _, s := range lhs {
			if _, ok := rhsSigs[e.matchKey(s.Labels)]; ok {
				out = append(out, s)
			}
		}
	case ast.OpUnless:
		for _, s := range lhs {
			if _, ok := rhsSigs[e.matchKey(s.Labels)]; !ok {
				out = append(out, s)
			}
		}
	case ast.OpOr:
		lhsSigs := make(map[string]struct{}, len(lhs))
		for _, s := range lhs {
			lhsSigs[e.matchKey(s.Labels)] = struct{}{}
			out = append(out, s)
		}
		for _, s := range rhs {
			if _, ok := lhsSigs[e.matchKey(s.Labels)]; !ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func (e *binaryEvaluator) evalOneToOne(lhs, rhs []VectorSample) ([]VectorSample, error) {
	rhsIndex := make(map[string]VectorSample, len(rhs))
	for _, s := range rhs {
		key := e.matchKey(s.Labels)
		if _, exists := rhsIndex[key]; exists {
			return nil, fmt.Errorf("engine: series collision: multiple rhs series with matching signature %q; use on/ignoring or group_left/group_right", key)
		}
		rhsIndex[key] = s
	}

	seen := make(map[string]bool)
	var out []VectorSample
	for _, s := range lhs {
		key := e.matchKey(s.Labels)
		rs, ok := rhsIndex[key]
		if !ok {
			continue
		}
		if seen[key] {
			return nil, fmt.Errorf("engine: many-to-one matching without group_left/group_right for signature %q", key)
		}
		seen[key] = true

		res, keep, err := e.combine(s, rs)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, res)
		}
	}
	return out, nil
}

func (e *binaryEvaluator) combine(lhs, rhs VectorSample) (VectorSample, bool, error) {
	if e.op.IsComparison() {
		pass := compare(e.op, lhs.Value, rhs.Value)
		if e.isBool {
			return VectorSample{Labels: lhs.Labels.DropName(), Value: boolToFloat(pass)}, true, nil
		}
		if !pass {
			return VectorSample{}, false, nil
		}
		return VectorSample{Labels: lhs.Labels, Value: lhs.Value}, true, nil
	}
	return VectorSample{Labels: lhs.Labels.DropName(), Value: arith(e.op, lhs.Value, rhs.Value)}, true, nil
}

// evalGrouped implements group_left/group_right many-to-one/one-to-many
// matching (spec §4.5).
func (e *binaryEvaluator) evalGrouped(lhs, rhs []VectorSample) ([]VectorSample, error) {
	manyIsLHS := e.groupModifier.Card == ast.MatchManyToOne
	many, one := lhs, rhs
	if !manyIsLHS {
		many, one = rhs, lhs
	}

	oneIndex := make(map[string]VectorSample, len(one))
	for _, s := range one {
		key := e.matchKey(s.Labels)
		if _, exists := oneIndex[key]; exists {
			return nil, fmt.Errorf("engine: group_left/group_right: multiple one-side series match signature %q", key)
		}
		oneIndex[key] = s
	}

	var out []VectorSample
	for _, s := range many {
		key := e.matchKey(s.Labels)
		os, ok := oneIndex[key]
		if !ok {
			continue
		}

		resultLabels := s.Labels
		for _, name := range e.groupModifier.Include {
			if os.Labels.Has(name) {
				resultLabels = resultLabels.Set(name, os.Labels.Get(name))
			}
		}

		lv, rv := s.Value, os.Value
		if !manyIsLHS {
			lv, rv = os.Value, s.Value
		}

		if e.op.IsComparison() {
			pass := compare(e.op, lv, rv)
			if e.isBool {
				out = append(out, VectorSample{Labels: resultLabels.DropName(), Value: boolToFloat(pass)})
				continue
			}
			if pass {
				out = append(out, VectorSample{Labels: resultLabels, Value: lv})
			}
			continue
		}
		out = append(out, VectorSample{Labels: resultLabels.DropName(), Value: arith(e.op, lv, rv)})
	}
	return out, nil
}

func arith(op ast.BinaryOp, a, b float64) float64 {
	switch op {
	case ast.OpAdd:
		return a + b
	case ast.OpSub:
		return a - b
	case ast.OpMul:
		return a * b
	case ast.OpDiv:
		return a / b
	case ast.OpMod:
		return math.Mod(a, b)
	case ast.OpPow:
		return math.Pow(a, b)
	default:
		return math.NaN()
	}
}

func compare(op ast.BinaryOp, a, b float64) bool {
	switch op {
	case ast.OpEql:
		return math.Abs(a-b) < epsilon
	case ast.OpNeq:
		return math.Abs(a-b) >= epsilon
	case ast.OpGt:
		return a > b
	case ast.OpGte:
		return a >= b
	case ast.OpLt:
		return a < b
	case ast.OpLte:
		return a <= b
	default:
		return false
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
