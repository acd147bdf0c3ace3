package engine

import (
	"fmt"

	"github.com/iximiuz/pq/pkg/query/ast"
)

// literalEvaluator is an infinite source of Scalar(v) ticks (spec §4.4
// "Identity(scalar)"). Scalar-rooted queries are made single-shot by
// wrapping the built root in NewSingleShot, not here.
type literalEvaluator struct {
	value float64
}

func (e *literalEvaluator) Kind() ast.ValueKind { return ast.KindScalar }

func (e *literalEvaluator) Next() (QueryValue, bool, error) {
	return QueryValue{Kind: ast.KindScalar, Scalar: e.value}, true, nil
}

// singleShotEvaluator yields its inner evaluator's first tick, then ends.
type singleShotEvaluator struct {
	inner Evaluator
	done  bool
}

// NewSingleShot wraps a scalar-rooted evaluator so the top-level driver
// sees exactly one tick instead of an infinite stream (spec §4.4).
func NewSingleShot(inner Evaluator) Evaluator {
	return &singleShotEvaluator{inner: inner}
}

func (e *singleShotEvaluator) Kind() ast.ValueKind { return e.inner.Kind() }

func (e *singleShotEvaluator) Next() (QueryValue, bool, error) {
	if e.done {
		return QueryValue{}, false, nil
	}
	e.done = true
	return e.inner.Next()
}

// unaryEvaluator implements spec §4.4 Unary(+,e)/Unary(-,e).
type unaryEvaluator struct {
	op    ast.UnaryOp
	inner Evaluator
}

func (e *unaryEvaluator) Kind() ast.ValueKind { return e.inner.Kind() }

func (e *unaryEvaluator) Next() (QueryValue, bool, error) {
	qv, ok, err := e.inner.Next()
	if err != nil || !ok {
		return qv, ok, err
	}
	if e.op == ast.UnaryPlus {
		return qv, true, nil
	}
	switch qv.Kind {
	case ast.KindScalar:
		qv.Scalar = -qv.Scalar
	case ast.KindInstantVector:
		out := make([]VectorSample, len(qv.Vector))
		for i, s := range qv.Vector {
			out[i] = VectorSample{Labels: s.Labels.DropName(), Value: -s.Value}
		}
		qv.Vector = out
	default:
		return QueryValue{}, false, fmt.Errorf("engine: unary - does not apply to a range vector")
	}
	return qv, true, nil
}
