// Package engine implements the pull-driven query evaluator (spec §4):
// a SampleReader/Cursor fan-out feeding per-node evaluators that walk the
// parsed expression tree and emit one QueryValue tick per Next() call.
package engine

import (
	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// VectorSample is one (labels, value) pair inside an InstantVector tick.
type VectorSample struct {
	Labels labels.Labels
	Value  float64
}

// RangeVectorSeries is one series' sample list inside a RangeVector tick,
// ordered newest-first (spec §4.3 "Emit").
type RangeVectorSeries struct {
	Labels  labels.Labels
	Samples []model.Sample
}

// QueryValue is the tagged union every evaluator node emits, mirroring the
// closed three-variant type spec §3/§9 describes: Scalar, InstantVector, or
// RangeVector, each carrying the instant it was computed at.
type QueryValue struct {
	Kind      ast.ValueKind
	Timestamp model.Timestamp
	Scalar    float64
	Vector    []VectorSample
	Matrix    []RangeVectorSeries
}

// Evaluator is the common interface every expression-tree node implements.
// Next returns the next tick; ok is false at end-of-stream, with err nil
// unless the stream ended because of a fatal error.
type Evaluator interface {
	Kind() ast.ValueKind
	Next() (QueryValue, bool, error)
}
