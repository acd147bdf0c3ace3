package engine

import (
	"fmt"
	"time"

	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// Context carries the build-time parameters every node needs: the shared
// sample reader, the evaluation cadence, the default lookback, and an
// optional explicit start instant (spec §4.7).
type Context struct {
	Reader   *SampleReader
	Interval time.Duration
	Lookback time.Duration
	StartAt  *model.Timestamp
}

// Build walks expr post-order, constructing one Evaluator per node (spec
// §4.7 "Build-time: walk the expression tree post-order, constructing
// iterators"). The caller is responsible for wrapping a scalar-kinded
// result in NewSingleShot before driving it.
func Build(ctx *Context, expr ast.Expr) (Evaluator, error) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return &literalEvaluator{value: e.Value}, nil

	case *ast.StringLiteral:
		return nil, fmt.Errorf("engine: a bare string literal is not a valid query result")

	case *ast.Parentheses:
		return Build(ctx, e.Inner)

	case *ast.VectorSelector:
		return buildVectorSelector(ctx, e), nil

	case *ast.UnaryExpr:
		inner, err := Build(ctx, e.Expr)
		if err != nil {
			return nil, err
		}
		if inner.Kind() == ast.KindRangeVector {
			return nil, fmt.Errorf("engine: unary %s does not apply to a range vector", e.Op)
		}
		return &unaryEvaluator{op: e.Op, inner: inner}, nil

	case *ast.AggregateExpr:
		return buildAggregate(ctx, e)

	case *ast.BinaryExpr:
		return buildBinary(ctx, e)

	case *ast.FunctionCall:
		return buildFunctionCall(ctx, e)

	default:
		return nil, fmt.Errorf("engine: unsupported expression type %T", expr)
	}
}

// BuildRoot builds expr's evaluator tree and, if the root produces a
// scalar, wraps it in NewSingleShot so driving it yields exactly one tick
// instead of one per interval — the wrapping Build's doc comment leaves to
// the caller, centralized here since every caller (cmd/pq, pkg/repl) needs
// the same rule.
func BuildRoot(ctx *Context, expr ast.Expr) (Evaluator, error) {
	root, err := Build(ctx, expr)
	if err != nil {
		return nil, err
	}
	if root.Kind() == ast.KindScalar {
		return NewSingleShot(root), nil
	}
	return root, nil
}

func buildVectorSelector(ctx *Context, sel *ast.VectorSelector) Evaluator {
	window := ctx.Lookback
	if sel.Range != nil {
		window = *sel.Range
	}
	v := &vectorSelectorEvaluator{
		cursor:   ctx.Reader.NewCursor(),
		matchers: sel.Matchers,
		interval: ctx.Interval,
		window:   window,
		rangeDur: sel.Range,
		matrix:   newSampleMatrix(),
	}
	if ctx.StartAt != nil {
		v.nextInstant = *ctx.StartAt
		v.initialized = true
	}
	return v
}

func buildAggregate(ctx *Context, e *ast.AggregateExpr) (Evaluator, error) {
	inner, err := Build(ctx, e.Inner)
	if err != nil {
		return nil, err
	}
	if inner.Kind() != ast.KindInstantVector {
		return nil, fmt.Errorf("engine: %s requires an instant vector argument", e.Op)
	}

	ag := &aggregateEvaluator{op: e.Op, inner: inner, modifier: e.Modifier}

	switch {
	case e.Op == ast.AggCountValues:
		lit, ok := e.Param.(*ast.StringLiteral)
		if !ok {
			return nil, fmt.Errorf("engine: count_values requires a string literal label name")
		}
		ag.paramLabel = lit.Value

	case e.Op.RequiresParam():
		paramEval, err := Build(ctx, e.Param)
		if err != nil {
			return nil, err
		}
		if paramEval.Kind() != ast.KindScalar {
			return nil, fmt.Errorf("engine: %s parameter must be a scalar", e.Op)
		}
		ag.paramEval = paramEval
	}

	return ag, nil
}

func buildBinary(ctx *Context, e *ast.BinaryExpr) (Evaluator, error) {
	lhs, err := Build(ctx, e.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := Build(ctx, e.RHS)
	if err != nil {
		return nil, err
	}
	if lhs.Kind() == ast.KindRangeVector || rhs.Kind() == ast.KindRangeVector {
		return nil, fmt.Errorf("engine: binary operator %s does not apply to a range vector", e.Op)
	}
	if lhs.Kind() == ast.KindScalar && rhs.Kind() == ast.KindScalar && e.Op.IsComparison() && !e.Bool {
		return nil, fmt.Errorf("engine: scalar-scalar comparison %s requires the bool modifier", e.Op)
	}

	be := &binaryEvaluator{
		op:            e.Op,
		lhs:           lhs,
		rhs:           rhs,
		lhsKind:       lhs.Kind(),
		rhsKind:       rhs.Kind(),
		isBool:        e.Bool,
		labelMatching: e.LabelMatching,
		groupModifier: e.GroupModifier,
	}
	if be.lhsKind != ast.KindScalar && be.rhsKind != ast.KindScalar {
		be.lhsPeek = &peekEvaluator{inner: lhs}
		be.rhsPeek = &peekEvaluator{inner: rhs}
	}
	return be, nil
}

func buildFunctionCall(ctx *Context, e *ast.FunctionCall) (Evaluator, error) {
	switch e.Name {
	case "vector":
		inner, err := Build(ctx, e.Args[0])
		if err != nil {
			return nil, err
		}
		return &vectorLiftEvaluator{inner: inner}, nil

	case "avg_over_time", "count_over_time", "last_over_time", "min_over_time", "max_over_time", "sum_over_time":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("engine: %s takes exactly one range vector argument", e.Name)
		}
		inner, err := Build(ctx, e.Args[0])
		if err != nil {
			return nil, err
		}
		if inner.Kind() != ast.KindRangeVector {
			return nil, fmt.Errorf("engine: %s requires a range vector argument, got a %s", e.Name, inner.Kind())
		}
		return &overTimeEvaluator{reducer: overTimeReducers[e.Name], inner: inner}, nil

	case "clamp", "clamp_max", "clamp_min", "label_replace":
		return nil, fmt.Errorf("engine: function %s is not supported", e.Name)

	default:
		return nil, fmt.Errorf("engine: unknown function %s", e.Name)
	}
}
