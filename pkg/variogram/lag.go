package variogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
)

// LagConfig controls how pair separations are discretized into bins.
// Either BinWidth and MaxLag, or explicit Edges, must be given.
type LagConfig struct {
	BinWidth float64   `yaml:"binWidth"`
	MaxLag   float64   `yaml:"maxLag"`
	Edges    []float64 `yaml:"edges,omitempty"`
}

// BinEdges returns the bin boundaries. Uniform bins start at zero and the
// last bin ends exactly at MaxLag, giving ceil(MaxLag/BinWidth) bins.
func (c LagConfig) BinEdges() ([]float64, error) {
	if len(c.Edges) > 0 {
		if len(c.Edges) < 2 {
			return nil, fmt.Errorf("%w: need at least two edges", ErrInvalidLagConfig)
		}
		if c.Edges[0] < 0 {
			return nil, fmt.Errorf("%w: negative first edge %g", ErrInvalidLagConfig, c.Edges[0])
		}
		for i := 1; i < len(c.Edges); i++ {
			if !(c.Edges[i] > c.Edges[i-1]) {
				return nil, fmt.Errorf("%w: edges must be strictly increasing", ErrInvalidLagConfig)
			}
		}
		edges := make([]float64, len(c.Edges))
		copy(edges, c.Edges)
		return edges, nil
	}

	if !(c.BinWidth > 0) || !(c.MaxLag > 0) || math.IsInf(c.MaxLag, 0) {
		return nil, fmt.Errorf("%w: bin width %g and max lag %g must be positive",
			ErrInvalidLagConfig, c.BinWidth, c.MaxLag)
	}
	n := int(math.Ceil(c.MaxLag/c.BinWidth - 1e-9))
	if n < 1 {
		n = 1
	}
	edges := make([]float64, n+1)
	for i := 0; i < n; i++ {
		edges[i] = float64(i) * c.BinWidth
	}
	edges[n] = c.MaxLag
	return edges, nil
}

// Offset is a cell-index separation and its physical length
type Offset struct {
	DI, DJ, DK int
	Lag        float64
	Pairs      int
}

// Vec returns the physical separation vector for the given cell size
func (o Offset) Vec(cell models.CellSize) r3.Vec {
	return r3.Vec{X: float64(o.DI) * cell.DX, Y: float64(o.DJ) * cell.DY, Z: float64(o.DK) * cell.DZ}
}

// LagBin groups the offsets whose physical length falls in [Lo, Hi).
// The last bin of a configuration is closed: [Lo, Hi].
type LagBin struct {
	Index     int
	Lo, Hi    float64
	Offsets   []Offset
	PairCount int

	// MeanLag is the pair weighted mean separation of the bin
	MeanLag float64

	// AxisShare holds the pair weighted mean squared direction cosines of
	// the bin's offsets with the x, y and z axes. Components sum to one.
	AxisShare r3.Vec
}

// BinLags enumerates every in-bounds pair of active cells separated along
// dir (within its tolerance) by at most the maximum lag, and assigns each
// pair to the bin containing its physical separation.
//
// Offsets are taken from the half-space dk > 0, or dk == 0 and dj > 0, or
// dk == dj == 0 and di > 0, so that an unordered pair is counted once.
func BinLags(g *models.Grid, dir Direction, cfg LagConfig) ([]LagBin, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if r3.Norm(dir.Vector) == 0 {
		return nil, &InvalidDirectionError{Vector: dir.Vector, Tolerance: dir.Tolerance, Reason: "zero magnitude"}
	}
	edges, err := cfg.BinEdges()
	if err != nil {
		return nil, err
	}

	bins := make([]LagBin, len(edges)-1)
	for b := range bins {
		bins[b] = LagBin{Index: b, Lo: edges[b], Hi: edges[b+1]}
	}

	maxLag := edges[len(edges)-1]
	cell := g.CellSize
	imax := min(g.Shape.NX-1, int(math.Floor(maxLag/cell.DX+1e-9)))
	jmax := min(g.Shape.NY-1, int(math.Floor(maxLag/cell.DY+1e-9)))
	kmax := min(g.Shape.NZ-1, int(math.Floor(maxLag/cell.DZ+1e-9)))

	lagSum := make([]float64, len(bins))
	shareSum := make([]r3.Vec, len(bins))

	for dk := 0; dk <= kmax; dk++ {
		for dj := -jmax; dj <= jmax; dj++ {
			for di := -imax; di <= imax; di++ {
				if !inHalfSpace(di, dj, dk) {
					continue
				}
				o := Offset{DI: di, DJ: dj, DK: dk}
				h := o.Vec(cell)
				o.Lag = r3.Norm(h)
				if o.Lag > maxLag*(1+1e-12) || !dir.Contains(h) {
					continue
				}
				b := locateBin(edges, o.Lag)
				if b < 0 {
					continue
				}
				o.Pairs = countPairs(g, o)
				if o.Pairs == 0 {
					continue
				}

				bin := &bins[b]
				bin.Offsets = append(bin.Offsets, o)
				bin.PairCount += o.Pairs
				w := float64(o.Pairs)
				lagSum[b] += w * o.Lag
				shareSum[b] = r3.Add(shareSum[b], r3.Scale(w/(o.Lag*o.Lag), r3.Vec{X: h.X * h.X, Y: h.Y * h.Y, Z: h.Z * h.Z}))
			}
		}
	}

	for b := range bins {
		if bins[b].PairCount == 0 {
			bins[b].MeanLag = 0.5 * (bins[b].Lo + bins[b].Hi)
			continue
		}
		n := float64(bins[b].PairCount)
		bins[b].MeanLag = lagSum[b] / n
		bins[b].AxisShare = r3.Scale(1/n, shareSum[b])
	}
	return bins, nil
}

func inHalfSpace(di, dj, dk int) bool {
	return dk > 0 || (dk == 0 && (dj > 0 || (dj == 0 && di > 0)))
}

// locateBin returns the bin containing h, or -1 when h is outside the edges.
// A separation equal to an inner edge belongs to the bin starting there.
func locateBin(edges []float64, h float64) int {
	n := len(edges) - 1
	last := edges[n]
	if h < edges[0] {
		return -1
	}
	if h >= last {
		if h <= last*(1+1e-12) {
			return n - 1
		}
		return -1
	}
	return sort.Search(len(edges), func(i int) bool { return edges[i] > h }) - 1
}

// forEachPair calls fn with the flat indices of every pair of active cells
// separated by o
func forEachPair(g *models.Grid, o Offset, fn func(a, b int)) {
	i0, i1 := max(0, -o.DI), min(g.Shape.NX, g.Shape.NX-o.DI)
	j0, j1 := max(0, -o.DJ), min(g.Shape.NY, g.Shape.NY-o.DJ)
	k0, k1 := max(0, -o.DK), min(g.Shape.NZ, g.Shape.NZ-o.DK)

	for k := k0; k < k1; k++ {
		for j := j0; j < j1; j++ {
			for i := i0; i < i1; i++ {
				if !g.Active(i, j, k) || !g.Active(i+o.DI, j+o.DJ, k+o.DK) {
					continue
				}
				fn(g.Index(i, j, k), g.Index(i+o.DI, j+o.DJ, k+o.DK))
			}
		}
	}
}

func countPairs(g *models.Grid, o Offset) int {
	n := 0
	forEachPair(g, o, func(_, _ int) { n++ })
	return n
}
