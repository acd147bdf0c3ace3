package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iximiuz/pq/pkg/engine"
	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/model"
	"github.com/iximiuz/pq/pkg/query/parser"
)

// sliceSource is a RecordSource over a fixed in-memory slice, used to drive
// the engine against the literal scenarios from the test suite.
type sliceSource struct {
	records []model.Record
	pos     int
}

func (s *sliceSource) Next() (model.Record, bool, error) {
	if s.pos >= len(s.records) {
		return model.Record{}, false, nil
	}
	r := s.records[s.pos]
	s.pos++
	return r, true, nil
}

func rec(ts int64, values map[string]float64, lbls map[string]string) model.Record {
	t := model.Timestamp(ts)
	return model.Record{Timestamp: &t, Labels: labels.FromMap(lbls), Values: values}
}

func mustBuild(t *testing.T, ctx *engine.Context, query string) engine.Evaluator {
	t.Helper()
	expr, err := parser.Parse(query)
	require.NoError(t, err)
	ev, err := engine.Build(ctx, expr)
	require.NoError(t, err)
	return ev
}

func drainAll(t *testing.T, ev engine.Evaluator) []engine.QueryValue {
	t.Helper()
	var out []engine.QueryValue
	err := engine.Drive(ev, func(qv engine.QueryValue) error {
		out = append(out, qv)
		return nil
	})
	require.NoError(t, err)
	return out
}

// S1: scalar query over empty input emits exactly one Scalar(3.0).
func TestScenarioS1ScalarLiteral(t *testing.T) {
	reader := engine.NewSampleReader(&sliceSource{})
	ctx := &engine.Context{Reader: reader, Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "1 + 2")
	ev = engine.NewSingleShot(ev)

	ticks := drainAll(t, ev)
	require.Len(t, ticks, 1)
	require.InDelta(t, 3.0, ticks[0].Scalar, 1e-9)
}

// S2: a plain vector selector ticks once per second with the newest sample.
func TestScenarioS2VectorSelector(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{"job": "a"}),
		rec(2000, map[string]float64{"x": 3}, map[string]string{"job": "a"}),
		rec(3000, map[string]float64{"x": 7}, map[string]string{"job": "a"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "x{}")

	ticks := drainAll(t, ev)
	require.GreaterOrEqual(t, len(ticks), 3)
	byTS := map[model.Timestamp]float64{}
	for _, tick := range ticks {
		if len(tick.Vector) > 0 {
			byTS[tick.Timestamp] = tick.Vector[0].Value
		}
	}
	require.InDelta(t, 1, byTS[1000], 1e-9)
	require.InDelta(t, 3, byTS[2000], 1e-9)
	require.InDelta(t, 7, byTS[3000], 1e-9)
}

// S3: vector * scalar scales every tick's value.
func TestScenarioS3VectorTimesScalar(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{"job": "a"}),
		rec(2000, map[string]float64{"x": 3}, map[string]string{"job": "a"}),
		rec(3000, map[string]float64{"x": 7}, map[string]string{"job": "a"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "x{} * 10")

	ticks := drainAll(t, ev)
	require.GreaterOrEqual(t, len(ticks), 3)
	byTS := map[model.Timestamp]float64{}
	for _, tick := range ticks {
		if len(tick.Vector) > 0 {
			byTS[tick.Timestamp] = tick.Vector[0].Value
		}
	}
	require.InDelta(t, 10, byTS[1000], 1e-9)
	require.InDelta(t, 30, byTS[2000], 1e-9)
	require.InDelta(t, 70, byTS[3000], 1e-9)
}

// S4: vector-vector arithmetic with on() drops __name__ and pairs by
// timestamp.
func TestScenarioS4VectorVectorArithmetic(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"a": 1, "b": 10}, map[string]string{}),
		rec(2000, map[string]float64{"a": 2, "b": 20}, map[string]string{}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "a{} + on() b{}")

	ticks := drainAll(t, ev)
	require.GreaterOrEqual(t, len(ticks), 2)
	byTS := map[model.Timestamp]float64{}
	for _, tick := range ticks {
		if len(tick.Vector) > 0 {
			byTS[tick.Timestamp] = tick.Vector[0].Value
		}
	}
	require.InDelta(t, 11, byTS[1000], 1e-9)
	require.InDelta(t, 22, byTS[2000], 1e-9)
	require.False(t, ticks[0].Vector[0].Labels.Has(labels.MetricName))
}

// S5: sum by(job) folds the inner vector's groups.
func TestScenarioS5Aggregation(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{"job": "a"}),
		rec(1000, map[string]float64{"x": 3}, map[string]string{"job": "b"}),
		rec(1000, map[string]float64{"x": 5}, map[string]string{"job": "a"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "sum by(job) (x{})")

	ticks := drainAll(t, ev)
	require.NotEmpty(t, ticks)
	require.Len(t, ticks[0].Vector, 2)

	byJob := map[string]float64{}
	for _, s := range ticks[0].Vector {
		byJob[s.Labels.Get("job")] = s.Value
	}
	require.InDelta(t, 6, byJob["a"], 1e-9)
	require.InDelta(t, 3, byJob["b"], 1e-9)
}

// S6: sum_over_time accumulates a sliding 2-second window.
func TestScenarioS6SumOverTime(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{}),
		rec(2000, map[string]float64{"x": 3}, map[string]string{}),
		rec(3000, map[string]float64{"x": 5}, map[string]string{}),
		rec(4000, map[string]float64{"x": 11}, map[string]string{}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "sum_over_time(x{}[2s])")

	ticks := drainAll(t, ev)
	var byTS = map[model.Timestamp]float64{}
	for _, tick := range ticks {
		if len(tick.Vector) > 0 {
			byTS[tick.Timestamp] = tick.Vector[0].Value
		}
	}
	require.InDelta(t, 4, byTS[2000], 1e-9)
	require.InDelta(t, 8, byTS[3000], 1e-9)
	require.InDelta(t, 16, byTS[4000], 1e-9)
}

// S7: comparison filters without bool, keeps lhs value; with bool emits 0/1.
func TestScenarioS7ComparisonFilter(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{"host": "a"}),
		rec(1000, map[string]float64{"x": 5}, map[string]string{"host": "b"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "x{} > 3")

	ticks := drainAll(t, ev)
	require.NotEmpty(t, ticks)
	require.Len(t, ticks[0].Vector, 1)
	require.Equal(t, "b", ticks[0].Vector[0].Labels.Get("host"))
	require.InDelta(t, 5, ticks[0].Vector[0].Value, 1e-9)
}

func TestScenarioS7ComparisonFilterBool(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"x": 1}, map[string]string{"host": "a"}),
		rec(1000, map[string]float64{"x": 5}, map[string]string{"host": "b"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "x{} > bool 3")

	ticks := drainAll(t, ev)
	require.NotEmpty(t, ticks)
	require.Len(t, ticks[0].Vector, 2)
	byHost := map[string]float64{}
	for _, s := range ticks[0].Vector {
		byHost[s.Labels.Get("host")] = s.Value
	}
	require.InDelta(t, 0, byHost["a"], 1e-9)
	require.InDelta(t, 1, byHost["b"], 1e-9)
}

func TestSeriesCollisionIsFatal(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		rec(1000, map[string]float64{"a": 1}, map[string]string{"job": "x"}),
		rec(1000, map[string]float64{"b": 10}, map[string]string{"job": "y"}),
		rec(1000, map[string]float64{"b": 20}, map[string]string{"job": "z"}),
	}}
	ctx := &engine.Context{Reader: engine.NewSampleReader(src), Interval: time.Second, Lookback: time.Second}
	ev := mustBuild(t, ctx, "a{} + on() b{}")

	err := engine.Drive(ev, func(engine.QueryValue) error { return nil })
	require.Error(t, err)
}

func TestDefaultIntervalDerivesFromRangeDuration(t *testing.T) {
	expr, err := parser.Parse("sum_over_time(x{}[5m])")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, engine.DefaultInterval(expr))

	expr, err = parser.Parse("1 + 2")
	require.NoError(t, err)
	require.Equal(t, time.Second, engine.DefaultInterval(expr))
}
