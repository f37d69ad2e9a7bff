package variogram

import (
	"iter"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
)

// ExperimentalPoint is the semivariance of one lag bin
type ExperimentalPoint struct {
	Lag          float64 // pair weighted mean separation
	Semivariance float64 // NaN when the bin holds no pairs
	PairCount    int

	// Lo and Hi are the bin bounds the point was computed from
	Lo, Hi float64

	// AxisShare is the pair weighted split of the bin's separations over
	// the x, y and z axes, used for per-axis quality.
	AxisShare r3.Vec
}

// Defined reports whether the point may be used for fitting and scoring
func (p ExperimentalPoint) Defined() bool {
	return p.PairCount > 0 && !math.IsNaN(p.Semivariance)
}

// Curve is an experimental variogram along one direction. Points are
// computed on demand from the grid and the bins.
type Curve struct {
	Direction Direction
	Bins      []LagBin

	grid *models.Grid
}

// ComputeExperimental bins the grid's pairs along dir and returns the
// experimental curve. The grid is only read.
func ComputeExperimental(g *models.Grid, dir Direction, cfg LagConfig) (*Curve, error) {
	bins, err := BinLags(g, dir, cfg)
	if err != nil {
		return nil, err
	}
	return &Curve{Direction: dir, Bins: bins, grid: g}, nil
}

// Points yields one point per bin in order of increasing lag. Each bin is
// evaluated when reached, and the sequence may be ranged over repeatedly.
func (c *Curve) Points() iter.Seq[ExperimentalPoint] {
	return func(yield func(ExperimentalPoint) bool) {
		for _, b := range c.Bins {
			if !yield(semivariance(c.grid, b)) {
				return
			}
		}
	}
}

// Collect evaluates every bin
func (c *Curve) Collect() []ExperimentalPoint {
	return slices.Collect(c.Points())
}

// DefinedPoints filters out bins without pairs
func DefinedPoints(points []ExperimentalPoint) []ExperimentalPoint {
	out := make([]ExperimentalPoint, 0, len(points))
	for _, p := range points {
		if p.Defined() {
			out = append(out, p)
		}
	}
	return out
}

// semivariance evaluates a single bin. Continuous grids use half the mean
// squared difference; categorical grids use the fraction of pairs whose
// codes differ.
func semivariance(g *models.Grid, b LagBin) ExperimentalPoint {
	p := ExperimentalPoint{
		Lag:       b.MeanLag,
		PairCount: b.PairCount,
		Lo:        b.Lo,
		Hi:        b.Hi,
		AxisShare: b.AxisShare,
	}
	if b.PairCount == 0 {
		p.Semivariance = math.NaN()
		return p
	}

	sum := 0.0
	n := 0
	for _, o := range b.Offsets {
		forEachPair(g, o, func(a, c int) {
			va, vc := g.Values[a], g.Values[c]
			if g.Categorical {
				if va != vc {
					sum++
				}
			} else {
				d := va - vc
				sum += d * d
			}
			n++
		})
	}

	if g.Categorical {
		p.Semivariance = sum / float64(n)
	} else {
		p.Semivariance = sum / (2 * float64(n))
	}
	return p
}
