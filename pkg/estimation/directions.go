package estimation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
	"vargrest/pkg/variogram"
)

// Names of the principal directions. A set holding all three produces an
// anisotropy ellipsoid.
const (
	Major    = "major"
	Minor    = "minor"
	Vertical = "vertical"
)

// ErrInvalidDirectionSet is returned for empty sets and duplicate names
var ErrInvalidDirectionSet = errors.New("estimation: invalid direction set")

// NamedDirection is one requested direction. A zero Lag is derived from
// the run configuration or the grid.
type NamedDirection struct {
	Name      string
	Direction variogram.Direction
	Lag       variogram.LagConfig
}

// DirectionSet is the ordered list of directions of a run
type DirectionSet []NamedDirection

// DefaultDirectionSet returns the major axis at azimuth, the minor axis
// perpendicular to it in the horizontal plane, and the vertical
func DefaultDirectionSet(azimuth, horizontalTol, verticalTol float64) (DirectionSet, error) {
	major, err := variogram.DirectionFromAngles(azimuth, 0, horizontalTol)
	if err != nil {
		return nil, fmt.Errorf("major direction: %w", err)
	}
	minor, err := variogram.DirectionFromAngles(azimuth+90, 0, horizontalTol)
	if err != nil {
		return nil, fmt.Errorf("minor direction: %w", err)
	}
	vertical, err := variogram.NewDirection(r3.Vec{Z: 1}, verticalTol)
	if err != nil {
		return nil, fmt.Errorf("vertical direction: %w", err)
	}
	return DirectionSet{
		{Name: Major, Direction: major},
		{Name: Minor, Direction: minor},
		{Name: Vertical, Direction: vertical},
	}, nil
}

// AutoDirectionSet is DefaultDirectionSet with the major azimuth taken from
// the direction of greatest horizontal continuity of g
func AutoDirectionSet(g *models.Grid, horizontalTol, verticalTol float64, cfg variogram.DominantConfig) (DirectionSet, float64, error) {
	az, err := variogram.DominantAzimuth(g, cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("dominant azimuth: %w", err)
	}
	set, err := DefaultDirectionSet(az, horizontalTol, verticalTol)
	return set, az, err
}

func (s DirectionSet) validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no directions", ErrInvalidDirectionSet)
	}
	seen := make(map[string]bool, len(s))
	for _, d := range s {
		if d.Name == "" {
			return fmt.Errorf("%w: unnamed direction", ErrInvalidDirectionSet)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate direction %q", ErrInvalidDirectionSet, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// isVertical reports whether d is closer to the z axis than to the
// horizontal plane
func isVertical(d variogram.Direction) bool {
	return math.Abs(d.Vector.Z) > math.Sqrt2/2
}

// autoLag bins by the cell size along d up to half the distance a line
// along d travels through the grid
func autoLag(g *models.Grid, d variogram.Direction) variogram.LagConfig {
	v := d.Vector
	cell := []float64{g.CellSize.DX, g.CellSize.DY, g.CellSize.DZ}
	ex, ey, ez := g.Extent()
	extent := []float64{ex - g.CellSize.DX, ey - g.CellSize.DY, ez - g.CellSize.DZ}
	comp := []float64{math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)}

	width := 0.0
	span := math.Inf(1)
	for i := range comp {
		width += comp[i] * comp[i] * cell[i]
		if comp[i] > 1e-9 {
			span = math.Min(span, extent[i]/comp[i])
		}
	}
	maxLag := math.Max(0.5*span, width)
	return variogram.LagConfig{BinWidth: width, MaxLag: maxLag}
}

// lagFor picks the lag configuration of one direction
func lagFor(g *models.Grid, d NamedDirection, cfg RunConfig) variogram.LagConfig {
	switch {
	case !lagEmpty(d.Lag):
		return d.Lag
	case isVertical(d.Direction) && !lagEmpty(cfg.VerticalLag):
		return cfg.VerticalLag
	case !isVertical(d.Direction) && !lagEmpty(cfg.Lag):
		return cfg.Lag
	}
	return autoLag(g, d.Direction)
}

func lagEmpty(c variogram.LagConfig) bool {
	return len(c.Edges) == 0 && c.BinWidth == 0 && c.MaxLag == 0
}
