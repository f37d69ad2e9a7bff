package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrShapeMismatch is returned when the value array or the active-cell
	// mask does not have exactly NX*NY*NZ elements.
	ErrShapeMismatch = errors.New("grid: shape and data size mismatch")

	// ErrEmptyGrid is returned for grids with no cells.
	ErrEmptyGrid = errors.New("grid: no cells")

	// ErrInvalidCellSize is returned when a cell dimension is not positive.
	ErrInvalidCellSize = errors.New("grid: cell size must be positive")
)

// Shape is the number of cells along each grid axis
type Shape struct {
	NX, NY, NZ int
}

// Cells returns the total number of cells
func (s Shape) Cells() int {
	return s.NX * s.NY * s.NZ
}

// CellSize is the physical size of a cell along each axis
type CellSize struct {
	DX, DY, DZ float64
}

// Origin is the physical position of the first cell corner
type Origin struct {
	X, Y, Z float64
}

// Grid represents a regular 3D property or facies grid
type Grid struct {
	// Shape holds the cell counts along x, y and z
	Shape Shape

	// CellSize is the physical spacing of the cells
	CellSize CellSize

	// Origin is informational and does not enter any lag computation
	Origin Origin

	// Rotation is the azimuth of the grid x axis in degrees, clockwise from north
	Rotation float64

	// Values is the property array in row-major order with x varying fastest:
	// index = (k*NY + j)*NX + i
	Values []float64

	// Mask marks active cells. Inactive cells never take part in a pair.
	Mask []bool

	// Categorical is set for facies codes. Categorical grids are
	// compared with an indicator transform instead of squared differences.
	Categorical bool

	// Attribute is the name of the property the values were read from
	Attribute string
}

// NewGrid creates a grid with every cell active
func NewGrid(shape Shape, cellSize CellSize, values []float64) *Grid {
	mask := make([]bool, len(values))
	for i := range mask {
		mask[i] = true
	}
	return &Grid{
		Shape:    shape,
		CellSize: cellSize,
		Values:   values,
		Mask:     mask,
	}
}

// Validate checks the invariants every computation relies on.
// A grid that fails validation cannot be used for any direction.
func (g *Grid) Validate() error {
	n := g.Shape.Cells()
	if g.Shape.NX <= 0 || g.Shape.NY <= 0 || g.Shape.NZ <= 0 {
		return fmt.Errorf("%w: shape %dx%dx%d", ErrEmptyGrid, g.Shape.NX, g.Shape.NY, g.Shape.NZ)
	}
	if len(g.Values) != n {
		return fmt.Errorf("%w: %d values for %d cells", ErrShapeMismatch, len(g.Values), n)
	}
	if len(g.Mask) != n {
		return fmt.Errorf("%w: %d mask entries for %d cells", ErrShapeMismatch, len(g.Mask), n)
	}
	if !(g.CellSize.DX > 0) || !(g.CellSize.DY > 0) || !(g.CellSize.DZ > 0) {
		return fmt.Errorf("%w: (%g, %g, %g)", ErrInvalidCellSize, g.CellSize.DX, g.CellSize.DY, g.CellSize.DZ)
	}
	return nil
}

// Index returns the flat index of cell (i, j, k)
func (g *Grid) Index(i, j, k int) int {
	return (k*g.Shape.NY+j)*g.Shape.NX + i
}

// InBounds reports whether (i, j, k) lies inside the grid
func (g *Grid) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.Shape.NX && j < g.Shape.NY && k < g.Shape.NZ
}

// At returns the value of cell (i, j, k)
func (g *Grid) At(i, j, k int) float64 {
	return g.Values[g.Index(i, j, k)]
}

// Active reports whether cell (i, j, k) takes part in pair statistics.
// NaN values are treated as inactive.
func (g *Grid) Active(i, j, k int) bool {
	idx := g.Index(i, j, k)
	return g.Mask[idx] && !math.IsNaN(g.Values[idx])
}

// ActiveCount returns the number of active cells
func (g *Grid) ActiveCount() int {
	n := 0
	for idx, on := range g.Mask {
		if on && !math.IsNaN(g.Values[idx]) {
			n++
		}
	}
	return n
}

// Extent returns the physical size of the grid along each axis
func (g *Grid) Extent() (x, y, z float64) {
	return float64(g.Shape.NX) * g.CellSize.DX,
		float64(g.Shape.NY) * g.CellSize.DY,
		float64(g.Shape.NZ) * g.CellSize.DZ
}

// ActiveValues returns the values of all active cells
func (g *Grid) ActiveValues() []float64 {
	out := make([]float64, 0, len(g.Values))
	for idx, v := range g.Values {
		if g.Mask[idx] && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Variance returns the population variance of the active values
func (g *Grid) Variance() float64 {
	vals := g.ActiveValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(vals, nil)
	return v
}

// Indicator returns a continuous grid holding 1 where the value equals code
// and 0 elsewhere. The mask is copied; NaN cells stay inactive.
func (g *Grid) Indicator(code float64) *Grid {
	out := &Grid{
		Shape:     g.Shape,
		CellSize:  g.CellSize,
		Origin:    g.Origin,
		Rotation:  g.Rotation,
		Values:    make([]float64, len(g.Values)),
		Mask:      make([]bool, len(g.Mask)),
		Attribute: fmt.Sprintf("%s==%g", g.Attribute, code),
	}
	copy(out.Mask, g.Mask)
	for idx, v := range g.Values {
		switch {
		case math.IsNaN(v):
			out.Mask[idx] = false
		case v == code:
			out.Values[idx] = 1
		}
	}
	return out
}

// Box extracts the sub-grid [i0,i1) x [j0,j1) x [k0,k1)
func (g *Grid) Box(i0, i1, j0, j1, k0, k1 int) (*Grid, error) {
	if i0 < 0 || j0 < 0 || k0 < 0 || i1 > g.Shape.NX || j1 > g.Shape.NY || k1 > g.Shape.NZ ||
		i0 >= i1 || j0 >= j1 || k0 >= k1 {
		return nil, fmt.Errorf("box [%d:%d, %d:%d, %d:%d] outside grid %dx%dx%d",
			i0, i1, j0, j1, k0, k1, g.Shape.NX, g.Shape.NY, g.Shape.NZ)
	}

	shape := Shape{NX: i1 - i0, NY: j1 - j0, NZ: k1 - k0}
	out := &Grid{
		Shape:    shape,
		CellSize: g.CellSize,
		Origin: Origin{
			X: g.Origin.X + float64(i0)*g.CellSize.DX,
			Y: g.Origin.Y + float64(j0)*g.CellSize.DY,
			Z: g.Origin.Z + float64(k0)*g.CellSize.DZ,
		},
		Rotation:    g.Rotation,
		Values:      make([]float64, 0, shape.Cells()),
		Mask:        make([]bool, 0, shape.Cells()),
		Categorical: g.Categorical,
		Attribute:   g.Attribute,
	}
	for k := k0; k < k1; k++ {
		for j := j0; j < j1; j++ {
			for i := i0; i < i1; i++ {
				idx := g.Index(i, j, k)
				out.Values = append(out.Values, g.Values[idx])
				out.Mask = append(out.Mask, g.Mask[idx])
			}
		}
	}
	return out, nil
}
