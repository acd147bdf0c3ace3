package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iximiuz/pq/pkg/query/ast"
	"github.com/iximiuz/pq/pkg/query/parser"
)

func TestParseScalar(t *testing.T) {
	expr, err := parser.Parse("1 + 2")
	require.NoError(t, err)
	require.Equal(t, ast.KindScalar, expr.Kind())
	require.Equal(t, "1 + 2", expr.String())
}

func TestParseVectorSelector(t *testing.T) {
	expr, err := parser.Parse(`x{job="a", env!="prod"}`)
	require.NoError(t, err)
	sel, ok := expr.(*ast.VectorSelector)
	require.True(t, ok)
	require.Nil(t, sel.Range)
	require.Len(t, sel.Matchers, 3) // __name__, job, env
}

func TestParseRangeVectorSelector(t *testing.T) {
	expr, err := parser.Parse(`x{}[5m]`)
	require.NoError(t, err)
	sel, ok := expr.(*ast.VectorSelector)
	require.True(t, ok)
	require.NotNil(t, sel.Range)
	require.Equal(t, "5m", ast.FormatDuration(*sel.Range))
}

func TestParseDurationStrictOrder(t *testing.T) {
	_, err := ast.ParseDuration("5m1h")
	require.Error(t, err)

	d, err := ast.ParseDuration("1h30m")
	require.NoError(t, err)
	require.Equal(t, "1h30m", ast.FormatDuration(d))
}

func TestParseAggregation(t *testing.T) {
	expr, err := parser.Parse(`sum by(job) (x{})`)
	require.NoError(t, err)
	agg, ok := expr.(*ast.AggregateExpr)
	require.True(t, ok)
	require.Equal(t, ast.AggSum, agg.Op)
	require.NotNil(t, agg.Modifier)
	require.True(t, agg.Modifier.By)
	require.Equal(t, []string{"job"}, agg.Modifier.Labels)
}

func TestParseTopKRequiresParam(t *testing.T) {
	_, err := parser.Parse(`topk(x{})`)
	require.Error(t, err)

	expr, err := parser.Parse(`topk(5, x{})`)
	require.NoError(t, err)
	agg := expr.(*ast.AggregateExpr)
	require.NotNil(t, agg.Param)
}

func TestParseBinaryPrecedence(t *testing.T) {
	expr, err := parser.Parse("1 + 2 * 3")
	require.NoError(t, err)
	bin := expr.(*ast.BinaryExpr)
	require.Equal(t, ast.OpAdd, bin.Op)
	rhs := bin.RHS.(*ast.BinaryExpr)
	require.Equal(t, ast.OpMul, rhs.Op)
}

func TestParsePowerRightAssociative(t *testing.T) {
	expr, err := parser.Parse("2 ^ 3 ^ 2")
	require.NoError(t, err)
	bin := expr.(*ast.BinaryExpr)
	require.Equal(t, ast.OpPow, bin.Op)
	_, ok := bin.RHS.(*ast.BinaryExpr)
	require.True(t, ok, "^ should be right-associative, RHS should itself be a power expr")
}

func TestParseGroupLeftRequiresOn(t *testing.T) {
	_, err := parser.Parse(`a + group_left() b`)
	require.Error(t, err)

	expr, err := parser.Parse(`a + on(job) group_left(env) b`)
	require.NoError(t, err)
	bin := expr.(*ast.BinaryExpr)
	require.NotNil(t, bin.GroupModifier)
	require.Equal(t, ast.MatchManyToOne, bin.GroupModifier.Card)
}

func TestParseBoolOnlyOnComparison(t *testing.T) {
	_, err := parser.Parse(`a + bool b`)
	require.Error(t, err)

	expr, err := parser.Parse(`a > bool b`)
	require.NoError(t, err)
	bin := expr.(*ast.BinaryExpr)
	require.True(t, bin.Bool)
}

func TestParseGroupModifierForbiddenOnLogical(t *testing.T) {
	_, err := parser.Parse(`a and on(job) group_left() b`)
	require.Error(t, err)
}

func TestParseVectorFunctionRequiresScalarArg(t *testing.T) {
	_, err := parser.Parse(`vector(x{})`)
	require.Error(t, err)

	expr, err := parser.Parse(`vector(1)`)
	require.NoError(t, err)
	fn := expr.(*ast.FunctionCall)
	require.Equal(t, "vector", fn.Name)
}

func TestParseRejectsTrailingInput(t *testing.T) {
	_, err := parser.Parse(`1 + 2 garbage`)
	require.Error(t, err)
}

// spec §3: "otherwise at least one matcher must not match the empty
// string (forbids selectors that would match all series)".
func TestParseVectorSelectorRejectsMatchEverything(t *testing.T) {
	_, err := parser.Parse(`{}`)
	require.Error(t, err)

	_, err = parser.Parse(`{job=~".*"}`)
	require.Error(t, err)
}

// spec §3: "if a metric name prefix is given, no other __name__ matcher
// may appear".
func TestParseVectorSelectorRejectsAmbiguousName(t *testing.T) {
	_, err := parser.Parse(`foo{__name__="bar"}`)
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	queries := []string{
		`sum by(job) (x{env="prod"})`,
		`x{} * 10`,
		`a + on(job) group_left(env) b`,
		`topk(5, x{}) > bool 3`,
	}
	for _, q := range queries {
		expr, err := parser.Parse(q)
		require.NoError(t, err, q)

		reparsed, err := parser.Parse(expr.String())
		require.NoError(t, err, expr.String())
		require.Equal(t, expr.String(), reparsed.String())
	}
}
