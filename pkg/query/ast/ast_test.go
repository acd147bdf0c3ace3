package ast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iximiuz/pq/pkg/query/ast"
)

func TestFormatDurationRoundTrip(t *testing.T) {
	cases := []string{"1ms", "5m", "1h30m", "2d", "1w", "1y", "90s"}
	for _, c := range cases {
		d, err := ast.ParseDuration(c)
		require.NoError(t, err, c)
		require.Greater(t, d, time.Duration(0), c)

		back, err := ast.ParseDuration(ast.FormatDuration(d))
		require.NoError(t, err, c)
		require.Equal(t, d, back, c)
	}
}

func TestParseDurationRejectsRepeatedUnit(t *testing.T) {
	_, err := ast.ParseDuration("5m5m")
	require.Error(t, err)
}

func TestParseDurationRejectsZero(t *testing.T) {
	_, err := ast.ParseDuration("0s")
	require.Error(t, err)
}

func TestParseDurationWeekAndYear(t *testing.T) {
	w, err := ast.ParseDuration("1w")
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, w)

	y, err := ast.ParseDuration("1y")
	require.NoError(t, err)
	require.Equal(t, 365*24*time.Hour, y)
}

func TestVectorSelectorKind(t *testing.T) {
	d := 5 * time.Minute
	instant := &ast.VectorSelector{}
	require.Equal(t, ast.KindInstantVector, instant.Kind())

	ranged := &ast.VectorSelector{Range: &d}
	require.Equal(t, ast.KindRangeVector, ranged.Kind())
}
