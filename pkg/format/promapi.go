package format

import (
	promodel "github.com/prometheus/common/model"
	"github.com/pkg/errors"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/query/ast"
)

// PromAPIFormatter renders a query tick the way Prometheus' HTTP query API
// shapes its `data` field (spec §6 "to_promapi"): `{"resultType": ...,
// "result": ...}`, using prometheus/common/model's Vector/Matrix/Scalar
// types so the string-quoted sample-value encoding matches Prometheus byte
// for byte. Grounded on original_source/src/format/promapi.rs, which hand-
// rolled the equivalent VectorItem/MatrixItem/Scalar serde structs; this
// package reuses the teacher's (and the wider example pack's) existing
// prometheus/common/model types instead of redefining them.
//
// Only query ticks are supported — to_promapi has no meaning for a raw
// decoded entry or an unqueried record, matching the original's
// `unimplemented!` on every other Value variant.
type PromAPIFormatter struct{}

type promAPIResult struct {
	ResultType string      `json:"resultType"`
	Result     interface{} `json:"result"`
}

func (f *PromAPIFormatter) Format(v Value) ([]byte, error) {
	if v.Query == nil {
		return nil, errUnsupportedByPromAPI()
	}
	qv := *v.Query

	switch qv.Kind {
	case ast.KindScalar:
		return jsonAPI.Marshal(promAPIResult{
			ResultType: "scalar",
			Result: promodel.Scalar{
				Value:     promodel.SampleValue(qv.Scalar),
				Timestamp: promodel.TimeFromUnixNano(int64(qv.Timestamp) * 1e6),
			},
		})

	case ast.KindInstantVector:
		vec := make(promodel.Vector, 0, len(qv.Vector))
		for _, s := range qv.Vector {
			vec = append(vec, &promodel.Sample{
				Metric:    toMetric(s.Labels),
				Value:     promodel.SampleValue(s.Value),
				Timestamp: promodel.TimeFromUnixNano(int64(qv.Timestamp) * 1e6),
			})
		}
		return jsonAPI.Marshal(promAPIResult{ResultType: "vector", Result: vec})

	case ast.KindRangeVector:
		mat := make(promodel.Matrix, 0, len(qv.Matrix))
		for _, series := range qv.Matrix {
			// series.Samples arrives newest-first (spec §3 "RangeVector");
			// the Prometheus HTTP API's matrix result orders each series
			// oldest-to-newest (spec §6 "to_promapi"), so reverse it here.
			pairs := make([]promodel.SamplePair, len(series.Samples))
			for i, sm := range series.Samples {
				pairs[len(series.Samples)-1-i] = promodel.SamplePair{
					Timestamp: promodel.TimeFromUnixNano(int64(sm.Timestamp) * 1e6),
					Value:     promodel.SampleValue(sm.Value),
				}
			}
			mat = append(mat, &promodel.SampleStream{Metric: toMetric(series.Labels), Values: pairs})
		}
		return jsonAPI.Marshal(promAPIResult{ResultType: "matrix", Result: mat})

	default:
		return nil, errUnsupportedByPromAPI()
	}
}

func toMetric(ls labels.Labels) promodel.Metric {
	m := make(promodel.Metric, ls.Len())
	ls.Range(func(name, value string) {
		m[promodel.LabelName(name)] = promodel.LabelValue(value)
	})
	return m
}

func errUnsupportedByPromAPI() error {
	return errors.New("format: to_promapi only supports scalar, instant vector, or range vector query results")
}
