package estimation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"vargrest/internal/models"
	"vargrest/pkg/variogram"
)

// Report is the outcome of a run. Every requested direction is listed,
// either with a model or with the reason it failed.
type Report struct {
	ID         string
	Identifier string
	Family     variogram.Family
	Subset     Subset
	Grid       GridSummary
	Directions []DirectionResult

	// Quality pools the scores of all fitted directions
	Quality variogram.QualityFactor

	// Ellipsoid is nil when EllipsoidError says why
	Ellipsoid      *variogram.Ellipsoid
	EllipsoidError string

	CreatedAt time.Time
}

// GridSummary describes the grid a report was computed from
type GridSummary struct {
	Shape       models.Shape
	CellSize    models.CellSize
	Attribute   string
	Categorical bool
	ActiveCells int
	Variance    float64
}

// DirectionResult is the slot of one direction
type DirectionResult struct {
	Name      string
	Direction variogram.Direction
	Lag       variogram.LagConfig

	// Stage is the last stage reached. A failed direction stops at the
	// stage before the one that failed.
	Stage  Stage
	Failed bool
	Reason string
	Err    error

	// Points is the raw experimental curve, undefined bins included
	Points []variogram.ExperimentalPoint

	Model      *variogram.Model
	Converged  bool
	Iterations int

	// BestEffort holds the parameters of a fit that did not converge
	BestEffort *variogram.Model

	Quality variogram.QualityFactor
}

// Direction returns the result with the given name, or nil
func (r *Report) Direction(name string) *DirectionResult {
	for i := range r.Directions {
		if r.Directions[i].Name == name {
			return &r.Directions[i]
		}
	}
	return nil
}

// FailedCount returns the number of failed directions
func (r *Report) FailedCount() int {
	n := 0
	for _, d := range r.Directions {
		if d.Failed {
			n++
		}
	}
	return n
}

// Summary is the flat per-run record written to the summary table
type Summary struct {
	Identifier   string
	Family       string
	ArchelFilter string
	Indicator    string
	Box          string
	Attribute    string
	Quality      float64
	RMajor       float64
	RMinor       float64
	Azimuth      float64
	RVertical    float64
	Sigma        float64
	QualityX     float64
	QualityY     float64
	QualityZ     float64
}

// Summary flattens the report. Values that could not be estimated are NaN.
func (r *Report) Summary() Summary {
	s := Summary{
		Identifier:   r.Identifier,
		Family:       r.Family.String(),
		ArchelFilter: r.Subset.archelString(),
		Indicator:    r.Subset.indicatorString(),
		Box:          r.Subset.boxString(),
		Attribute:    r.Grid.Attribute,
		Quality:      r.Quality.Full.Value,
		RMajor:       math.NaN(),
		RMinor:       math.NaN(),
		Azimuth:      math.NaN(),
		RVertical:    math.NaN(),
		Sigma:        math.NaN(),
		QualityX:     r.Quality.X.Value,
		QualityY:     r.Quality.Y.Value,
		QualityZ:     r.Quality.Z.Value,
	}

	rangeOf := func(name string) float64 {
		if d := r.Direction(name); d != nil && !d.Failed {
			return d.Model.Range
		}
		return math.NaN()
	}
	s.RMajor, s.RMinor, s.RVertical = rangeOf(Major), rangeOf(Minor), rangeOf(Vertical)
	if d := r.Direction(Major); d != nil {
		s.Azimuth = d.Direction.Azimuth()
	}
	if r.Ellipsoid != nil {
		s.Azimuth = r.Ellipsoid.Azimuth
	}

	// sigma from the pooled sill of the fitted directions
	total, n := 0.0, 0
	for _, d := range r.Directions {
		if !d.Failed {
			total += d.Model.Total()
			n++
		}
	}
	if n > 0 {
		s.Sigma = math.Sqrt(total / float64(n))
	}
	return s
}

// Subset records how the analyzed grid was cut from the input
type Subset struct {
	// Indicator is the facies code turned into a 0/1 grid, if any
	Indicator *float64
	// Box is [i0, i1, j0, j1, k0, k1), empty for the whole grid
	Box []int
	// ArchelFilter lists the architectural element codes kept, if any
	ArchelFilter []float64
}

// Apply cuts the box and then applies the indicator transform
func (s Subset) Apply(g *models.Grid) (*models.Grid, error) {
	out := g
	if len(s.Box) > 0 {
		if len(s.Box) != 6 {
			return nil, fmt.Errorf("box needs 6 indices, got %d", len(s.Box))
		}
		b, err := g.Box(s.Box[0], s.Box[1], s.Box[2], s.Box[3], s.Box[4], s.Box[5])
		if err != nil {
			return nil, err
		}
		out = b
	}
	if s.Indicator != nil {
		out = out.Indicator(*s.Indicator)
	}
	return out, nil
}

func (s Subset) indicatorString() string {
	if s.Indicator == nil {
		return ""
	}
	return fmt.Sprintf("%g", *s.Indicator)
}

func (s Subset) boxString() string {
	if len(s.Box) == 0 {
		return ""
	}
	parts := make([]string, len(s.Box))
	for i, v := range s.Box {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ":")
}

func (s Subset) archelString() string {
	if len(s.ArchelFilter) == 0 {
		return ""
	}
	parts := make([]string, len(s.ArchelFilter))
	for i, v := range s.ArchelFilter {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ":")
}
