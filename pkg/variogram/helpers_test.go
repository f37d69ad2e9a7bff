package variogram

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
)

// gridFrom builds an all-active grid whose values come from f(i, j, k)
func gridFrom(shape models.Shape, cell models.CellSize, f func(i, j, k int) float64) *models.Grid {
	values := make([]float64, shape.Cells())
	g := models.NewGrid(shape, cell, values)
	for k := 0; k < shape.NZ; k++ {
		for j := 0; j < shape.NY; j++ {
			for i := 0; i < shape.NX; i++ {
				g.Values[g.Index(i, j, k)] = f(i, j, k)
			}
		}
	}
	return g
}

func mustDirection(v r3.Vec, tol float64) Direction {
	d, err := NewDirection(v, tol)
	if err != nil {
		panic(err)
	}
	return d
}

// syntheticPoints samples m at lags 2.5, 7.5, ... with decreasing pair counts
func syntheticPoints(m Model, n int, width float64) []ExperimentalPoint {
	pts := make([]ExperimentalPoint, n)
	for i := range pts {
		lo := float64(i) * width
		h := lo + width/2
		pts[i] = ExperimentalPoint{
			Lag:          h,
			Semivariance: m.Evaluate(h),
			PairCount:    1000 - 10*i,
			Lo:           lo,
			Hi:           lo + width,
			AxisShare:    r3.Vec{X: 1},
		}
	}
	return pts
}
