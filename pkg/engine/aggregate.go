package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// aggregateEvaluator implements spec §4.4 Aggregate(op, modifier, arg,
// inner): per tick, group the inner instant vector by the by()/without()
// modifier (or the empty set when unmodified) and fold each group with the
// operator's reducer.
type aggregateEvaluator struct {
	op       ast.AggregateOp
	inner    Evaluator
	modifier *ast.AggregateModifier

	// paramLabel is set for count_values (a constant label name).
	// paramEval is set for topk/bottomk/quantile (a per-tick scalar).
	paramLabel string
	paramEval  Evaluator
}

func (e *aggregateEvaluator) Kind() ast.ValueKind { return ast.KindInstantVector }

// aggGroup accumulates one group's members: each member keeps its original
// (name-dropped) labels, needed by topk/bottomk/count_values which surface
// individual series rather than a single folded value.
type aggGroup struct {
	labels  labels.Labels
	members []VectorSample
}

func (e *aggregateEvaluator) groupLabels(l labels.Labels) labels.Labels {
	switch {
	case e.modifier == nil:
		return labels.Empty()
	case e.modifier.By:
		return l.With(labels.NameSet(e.modifier.Labels))
	default:
		return l.Without(labels.NameSet(e.modifier.Labels))
	}
}

func (e *aggregateEvaluator) Next() (QueryValue, bool, error) {
	innerQV, ok, err := e.inner.Next()
	if err != nil || !ok {
		return QueryValue{}, ok, err
	}
	if innerQV.Kind != ast.KindInstantVector {
		return QueryValue{}, false, fmt.Errorf("engine: %s requires an instant vector", e.op)
	}

	var param float64
	if e.paramEval != nil {
		pv, pok, perr := e.paramEval.Next()
		if perr != nil || !pok {
			return QueryValue{}, false, perr
		}
		param = pv.Scalar
	}

	groups := make(map[string]*aggGroup)
	var order []string
	for _, s := range innerQV.Vector {
		gl := e.groupLabels(s.Labels)
		sig := gl.Signature()
		g, exists := groups[sig]
		if !exists {
			g = &aggGroup{labels: gl}
			groups[sig] = g
			order = append(order, sig)
		}
		g.members = append(g.members, VectorSample{Labels: s.Labels.DropName(), Value: s.Value})
	}
	sort.Strings(order)

	var out []VectorSample
	for _, sig := range order {
		g := groups[sig]
		switch e.op {
		case ast.AggTopK, ast.AggBottomK:
			out = append(out, reduceTopBottom(g, int(param), e.op == ast.AggTopK)...)
		case ast.AggCountValues:
			out = append(out, reduceCountValues(g, e.paramLabel)...)
		default:
			v, err := reduceSimple(e.op, valuesOf(g), param)
			if err != nil {
				return QueryValue{}, false, err
			}
			out = append(out, VectorSample{Labels: g.labels, Value: v})
		}
	}

	return QueryValue{Kind: ast.KindInstantVector, Timestamp: innerQV.Timestamp, Vector: out}, true, nil
}

func valuesOf(g *aggGroup) []float64 {
	vs := make([]float64, len(g.members))
	for i, m := range g.members {
		vs[i] = m.Value
	}
	return vs
}

func reduceSimple(op ast.AggregateOp, values []float64, param float64) (float64, error) {
	switch op {
	case ast.AggSum:
		var s float64
		for _, v := range values {
			s += v
		}
		return s, nil
	case ast.AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case ast.AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case ast.AggAvg:
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), nil
	case ast.AggCount:
		return float64(len(values)), nil
	case ast.AggGroup:
		return 1, nil
	case ast.AggStddev:
		return math.Sqrt(populationVariance(values)), nil
	case ast.AggStdvar:
		return populationVariance(values), nil
	case ast.AggQuantile:
		return quantile(param, values), nil
	default:
		return 0, fmt.Errorf("engine: unsupported aggregation operator %s", op)
	}
}

func populationVariance(values []float64) float64 {
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(values))
}

// quantile computes the linear-interpolation quantile over sorted group
// values (spec §4.4 "quantile = linear interpolation over sorted group
// values"), matching Prometheus' convention for q outside [0,1].
func quantile(q float64, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	if q < 0 {
		return math.Inf(-1)
	}
	if q > 1 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func reduceTopBottom(g *aggGroup, k int, top bool) []VectorSample {
	members := append([]VectorSample(nil), g.members...)
	sort.SliceStable(members, func(i, j int) bool {
		if top {
			return members[i].Value > members[j].Value
		}
		return members[i].Value < members[j].Value
	})
	if k < 0 {
		k = 0
	}
	if k > len(members) {
		k = len(members)
	}
	return members[:k]
}

func reduceCountValues(g *aggGroup, label string) []VectorSample {
	counts := make(map[float64]int)
	var order []float64
	for _, m := range g.members {
		if _, seen := counts[m.Value]; !seen {
			order = append(order, m.Value)
		}
		counts[m.Value]++
	}
	sort.Float64s(order)

	out := make([]VectorSample, 0, len(order))
	for _, v := range order {
		lbls := g.labels.Set(label, strconv.FormatFloat(v, 'f', -1, 64))
		out = append(out, VectorSample{Labels: lbls, Value: float64(counts[v])})
	}
	return out
}
