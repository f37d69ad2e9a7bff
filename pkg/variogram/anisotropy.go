package variogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
)

// AxisFit is the fitted range along one direction
type AxisFit struct {
	Direction Direction
	Range     float64
}

// Ellipsoid is the anisotropy ellipsoid assembled from the major, minor and
// vertical fits. The axes form an orthonormal frame.
type Ellipsoid struct {
	Major    r3.Vec
	Minor    r3.Vec
	Vertical r3.Vec

	RangeMajor    float64
	RangeMinor    float64
	RangeVertical float64

	// Rotation in degrees: azimuth and dip of the major axis, rake of the
	// minor axis about the major axis
	Azimuth float64
	Dip     float64
	Rake    float64
}

// NewEllipsoid orthonormalizes the three fitted directions with Gram-Schmidt,
// keeping the major axis as given, and derives the rotation angles.
func NewEllipsoid(major, minor, vertical AxisFit) (*Ellipsoid, error) {
	for _, a := range []struct {
		name string
		fit  AxisFit
	}{{"major", major}, {"minor", minor}, {"vertical", vertical}} {
		if !(a.fit.Range > 0) || math.IsInf(a.fit.Range, 0) {
			return nil, fmt.Errorf("%w: %s range %g is not positive", ErrInvalidEllipsoid, a.name, a.fit.Range)
		}
	}

	e1 := r3.Unit(major.Direction.Vector)
	e2 := r3.Sub(minor.Direction.Vector, r3.Scale(r3.Dot(minor.Direction.Vector, e1), e1))
	if r3.Norm(e2) < 1e-6 {
		return nil, fmt.Errorf("%w: minor direction is parallel to major", ErrInvalidEllipsoid)
	}
	e2 = r3.Unit(e2)
	e3 := r3.Sub(vertical.Direction.Vector, r3.Add(
		r3.Scale(r3.Dot(vertical.Direction.Vector, e1), e1),
		r3.Scale(r3.Dot(vertical.Direction.Vector, e2), e2)))
	if r3.Norm(e3) < 1e-6 {
		return nil, fmt.Errorf("%w: vertical direction lies in the major-minor plane", ErrInvalidEllipsoid)
	}
	e3 = r3.Unit(e3)

	axis := Direction{Vector: canonical(e1)}
	return &Ellipsoid{
		Major:         e1,
		Minor:         e2,
		Vertical:      e3,
		RangeMajor:    major.Range,
		RangeMinor:    minor.Range,
		RangeVertical: vertical.Range,
		Azimuth:       axis.Azimuth(),
		Dip:           axis.Dip(),
		Rake:          rake(canonical(e1), e2),
	}, nil
}

// rake is the angle in degrees, in (-90, 90], between the minor axis and the
// horizontal line perpendicular to the major axis
func rake(major, minor r3.Vec) float64 {
	horiz := r3.Cross(r3.Vec{Z: 1}, major)
	if r3.Norm(horiz) < 1e-12 {
		// vertical major axis: measure from the grid x axis
		horiz = r3.Vec{X: 1}
	}
	horiz = r3.Unit(horiz)
	up := r3.Unit(r3.Cross(major, horiz))
	deg := math.Atan2(r3.Dot(minor, up), r3.Dot(minor, horiz)) * 180 / math.Pi
	switch {
	case deg > 90:
		deg -= 180
	case deg <= -90:
		deg += 180
	}
	if math.Abs(deg) < 1e-9 {
		deg = 0
	}
	return deg
}

// RangeAlong returns the ellipsoid radius along v
func (e *Ellipsoid) RangeAlong(v r3.Vec) float64 {
	u := r3.Unit(v)
	a := r3.Dot(u, e.Major) / e.RangeMajor
	b := r3.Dot(u, e.Minor) / e.RangeMinor
	c := r3.Dot(u, e.Vertical) / e.RangeVertical
	return 1 / math.Sqrt(a*a+b*b+c*c)
}

// Ratios returns the minor/major and vertical/major range ratios
func (e *Ellipsoid) Ratios() (minor, vertical float64) {
	return e.RangeMinor / e.RangeMajor, e.RangeVertical / e.RangeMajor
}

// DominantConfig controls the search for the direction of greatest
// horizontal continuity
type DominantConfig struct {
	// Steps is the number of azimuths scanned over [0, 180)
	Steps int
	// Tolerance is the angular tolerance of each scanned direction in degrees
	Tolerance float64
	// BinWidth of the experimental curves; zero uses the horizontal cell size
	BinWidth float64
}

// DefaultDominantConfig scans 24 azimuths
func DefaultDominantConfig() DominantConfig {
	return DominantConfig{Steps: 24, Tolerance: 7.5}
}

// DominantAzimuth scans horizontal azimuths and returns the one whose
// experimental variogram has the smallest mean value up to half the shorter
// horizontal extent of the grid, i.e. the direction of greatest continuity.
func DominantAzimuth(g *models.Grid, cfg DominantConfig) (float64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	def := DefaultDominantConfig()
	if cfg.Steps <= 0 {
		cfg.Steps = def.Steps
	}
	if !(cfg.Tolerance > 0) {
		cfg.Tolerance = def.Tolerance
	}
	if !(cfg.BinWidth > 0) {
		cfg.BinWidth = math.Max(g.CellSize.DX, g.CellSize.DY)
	}

	ex, ey, _ := g.Extent()
	hMax := 0.5 * math.Min(ex-g.CellSize.DX, ey-g.CellSize.DY)
	if hMax < cfg.BinWidth {
		return 0, &InsufficientDataError{Valid: 0, Required: minFitPoints}
	}
	lag := LagConfig{BinWidth: cfg.BinWidth, MaxLag: hMax}

	best, bestAz := math.Inf(1), 0.0
	for s := 0; s < cfg.Steps; s++ {
		az := 180 * float64(s) / float64(cfg.Steps)
		dir, err := DirectionFromAngles(az, 0, cfg.Tolerance)
		if err != nil {
			return 0, err
		}
		curve, err := ComputeExperimental(g, dir, lag)
		if err != nil {
			return 0, err
		}
		mean, ok := meanSemivariance(DefinedPoints(curve.Collect()))
		if ok && mean < best {
			best, bestAz = mean, az
		}
	}
	if math.IsInf(best, 1) {
		return 0, &InsufficientDataError{Valid: 0, Required: minFitPoints}
	}
	return bestAz, nil
}

// meanSemivariance integrates the curve from the origin, where the variogram
// is zero, to its last lag and divides by that lag
func meanSemivariance(pts []ExperimentalPoint) (float64, bool) {
	if len(pts) == 0 {
		return 0, false
	}
	x := make([]float64, 0, len(pts)+1)
	y := make([]float64, 0, len(pts)+1)
	x = append(x, 0)
	y = append(y, 0)
	for _, p := range pts {
		if p.Lag <= x[len(x)-1] {
			continue
		}
		x = append(x, p.Lag)
		y = append(y, p.Semivariance)
	}
	if len(x) < 2 {
		return 0, false
	}
	return integrate.Trapezoidal(x, y) / x[len(x)-1], true
}
