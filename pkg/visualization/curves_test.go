package visualization

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/pkg/estimation"
	"vargrest/pkg/variogram"
)

func curveReport(t *testing.T) *estimation.Report {
	t.Helper()
	m := variogram.Model{Family: variogram.Exponential, Nugget: 0.05, Sill: 0.95, Range: 60}
	var points []variogram.ExperimentalPoint
	for i := 0; i < 10; i++ {
		h := 10*float64(i) + 5
		points = append(points, variogram.ExperimentalPoint{
			Lag: h, Semivariance: m.Evaluate(h), PairCount: 100, Lo: h - 5, Hi: h + 5,
		})
	}
	points = append(points, variogram.ExperimentalPoint{Lag: math.NaN(), Semivariance: math.NaN(), Lo: 100, Hi: 110})

	dir, err := variogram.NewDirection(r3.Vec{X: 1}, 22.5)
	require.NoError(t, err)
	return &estimation.Report{
		Identifier: "curves",
		Family:     variogram.Exponential,
		Grid:       estimation.GridSummary{Variance: 1},
		Directions: []estimation.DirectionResult{
			{Name: estimation.Major, Direction: dir, Points: points, Model: &m, Stage: estimation.Aggregated},
			{Name: estimation.Minor, Direction: dir, Points: points[:4], Failed: true, Stage: estimation.ExperimentalComputed},
			{Name: estimation.Vertical, Direction: dir, Failed: true},
		},
	}
}

func TestCurves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curves.png")
	require.NoError(t, Curves(curveReport(t), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCurvesNothingToPlot(t *testing.T) {
	r := curveReport(t)
	for i := range r.Directions {
		r.Directions[i].Points = nil
	}
	err := Curves(r, filepath.Join(t.TempDir(), "curves.png"))
	assert.ErrorIs(t, err, ErrNothingToPlot)
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
	assert.NotEqual(t, colors[1], colors[2])
}
