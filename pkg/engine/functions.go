package engine

import (
	"math"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// overTimeReducer folds one series' range-vector samples (newest first)
// into a single value.
type overTimeReducer func([]model.Sample) float64

var overTimeReducers = map[string]overTimeReducer{
	"avg_over_time":   avgOverTime,
	"count_over_time": countOverTime,
	"last_over_time":  lastOverTime,
	"min_over_time":   minOverTime,
	"max_over_time":   maxOverTime,
	"sum_over_time":   sumOverTime,
}

func avgOverTime(s []model.Sample) float64 {
	return sumOverTime(s) / float64(len(s))
}

func countOverTime(s []model.Sample) float64 { return float64(len(s)) }

// lastOverTime returns the newest sample's value; samples arrive
// newest-first (spec §4.3 "Emit").
func lastOverTime(s []model.Sample) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[0].Value
}

func minOverTime(s []model.Sample) float64 {
	m := s[0].Value
	for _, x := range s[1:] {
		if x.Value < m {
			m = x.Value
		}
	}
	return m
}

func maxOverTime(s []model.Sample) float64 {
	m := s[0].Value
	for _, x := range s[1:] {
		if x.Value > m {
			m = x.Value
		}
	}
	return m
}

func sumOverTime(s []model.Sample) float64 {
	var t float64
	for _, x := range s {
		t += x.Value
	}
	return t
}

// overTimeEvaluator implements the `{avg,count,last,min,max,sum}_over_time`
// family (spec §4.6): reduce each range-vector tick's series to one value,
// dropping the metric name.
type overTimeEvaluator struct {
	reducer overTimeReducer
	inner   Evaluator
}

func (e *overTimeEvaluator) Kind() ast.ValueKind { return ast.KindInstantVector }

func (e *overTimeEvaluator) Next() (QueryValue, bool, error) {
	qv, ok, err := e.inner.Next()
	if err != nil || !ok {
		return QueryValue{}, ok, err
	}
	out := make([]VectorSample, len(qv.Matrix))
	for i, series := range qv.Matrix {
		out[i] = VectorSample{Labels: series.Labels.DropName(), Value: e.reducer(series.Samples)}
	}
	return QueryValue{Kind: ast.KindInstantVector, Timestamp: qv.Timestamp, Vector: out}, true, nil
}

// vectorLiftEvaluator implements vector(scalar) (spec §4.6): lifts a
// scalar tick to an instant vector with no labels.
type vectorLiftEvaluator struct {
	inner Evaluator
}

func (e *vectorLiftEvaluator) Kind() ast.ValueKind { return ast.KindInstantVector }

func (e *vectorLiftEvaluator) Next() (QueryValue, bool, error) {
	qv, ok, err := e.inner.Next()
	if err != nil || !ok {
		return QueryValue{}, ok, err
	}
	return QueryValue{
		Kind:      ast.KindInstantVector,
		Timestamp: qv.Timestamp,
		Vector:    []VectorSample{{Labels: labels.Empty(), Value: qv.Scalar}},
	}, true, nil
}
