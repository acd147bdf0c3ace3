package engine

import (
	"time"

	"github.com/iximiuz/pq/pkg/query/ast"
)

// smallestPositiveDuration returns the smallest strictly-positive value f
// produces across items, or zero if none is positive. Adapted from the
// teacher's per-tenant smallest-limit reduction helpers (same "track the
// smallest positive value seen so far" shape, applied here to range
// durations gathered from an expression tree instead of tenant limits).
func smallestPositiveDuration(items []time.Duration) time.Duration {
	var result *time.Duration
	for i := range items {
		v := items[i]
		if v > 0 && (result == nil || v < *result) {
			result = &v
		}
	}
	if result == nil {
		return 0
	}
	return *result
}

// DefaultInterval derives the evaluation step when the user didn't pass
// --interval: the smallest range duration appearing anywhere in the
// expression tree, or 1 second if the query has none (spec §4.7).
func DefaultInterval(expr ast.Expr) time.Duration {
	var durations []time.Duration
	collectRangeDurations(expr, &durations)
	if d := smallestPositiveDuration(durations); d > 0 {
		return d
	}
	return time.Second
}

func collectRangeDurations(expr ast.Expr, out *[]time.Duration) {
	switch e := expr.(type) {
	case *ast.VectorSelector:
		if e.Range != nil {
			*out = append(*out, *e.Range)
		}
	case *ast.UnaryExpr:
		collectRangeDurations(e.Expr, out)
	case *ast.BinaryExpr:
		collectRangeDurations(e.LHS, out)
		collectRangeDurations(e.RHS, out)
	case *ast.AggregateExpr:
		collectRangeDurations(e.Inner, out)
		if e.Param != nil {
			collectRangeDurations(e.Param, out)
		}
	case *ast.FunctionCall:
		for _, a := range e.Args {
			collectRangeDurations(a, out)
		}
	case *ast.Parentheses:
		collectRangeDurations(e.Inner, out)
	}
}
