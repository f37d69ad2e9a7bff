package variogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Direction is a unit vector in physical grid space together with an
// angular tolerance. A pair separated by offset h belongs to the direction
// when the angle between h and either d or -d is within the tolerance.
type Direction struct {
	Vector    r3.Vec  // unit vector, canonical sign
	Tolerance float64 // half-angle of the tolerance cone in degrees
}

// NewDirection normalizes v and validates the tolerance
func NewDirection(v r3.Vec, toleranceDeg float64) (Direction, error) {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return Direction{}, &InvalidDirectionError{Vector: v, Tolerance: toleranceDeg, Reason: "non-finite component"}
	}
	if r3.Norm(v) == 0 {
		return Direction{}, &InvalidDirectionError{Vector: v, Tolerance: toleranceDeg, Reason: "zero magnitude"}
	}
	if math.IsNaN(toleranceDeg) || toleranceDeg < 0 || toleranceDeg > 90 {
		return Direction{}, &InvalidDirectionError{Vector: v, Tolerance: toleranceDeg, Reason: "tolerance must be within [0, 90] degrees"}
	}
	return Direction{Vector: canonical(r3.Unit(v)), Tolerance: toleranceDeg}, nil
}

// DirectionFromAngles builds a direction from an azimuth (degrees clockwise
// from the grid y axis) and a dip (degrees, positive along +z)
func DirectionFromAngles(azimuthDeg, dipDeg, toleranceDeg float64) (Direction, error) {
	az := azimuthDeg * math.Pi / 180
	dip := dipDeg * math.Pi / 180
	v := r3.Vec{
		X: math.Sin(az) * math.Cos(dip),
		Y: math.Cos(az) * math.Cos(dip),
		Z: math.Sin(dip),
	}
	return NewDirection(cleanVec(v), toleranceDeg)
}

// Azimuth returns the horizontal angle of the direction in degrees, in [0, 180)
func (d Direction) Azimuth() float64 {
	if math.Abs(d.Vector.X) < 1e-12 && math.Abs(d.Vector.Y) < 1e-12 {
		return 0
	}
	az := math.Atan2(d.Vector.X, d.Vector.Y) * 180 / math.Pi
	for az < 0 {
		az += 180
	}
	for az >= 180 {
		az -= 180
	}
	return az
}

// Dip returns the angle below the horizontal plane in degrees, in [0, 90]
func (d Direction) Dip() float64 {
	return math.Asin(math.Min(1, math.Abs(d.Vector.Z))) * 180 / math.Pi
}

// Contains reports whether the physical offset h lies inside the tolerance
// cone of d or -d. The zero offset is never contained.
func (d Direction) Contains(h r3.Vec) bool {
	n := r3.Norm(h)
	if n == 0 {
		return false
	}
	cos := math.Abs(r3.Dot(h, d.Vector)) / n
	return cos >= math.Cos(d.Tolerance*math.Pi/180)-1e-12
}

func (d Direction) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)±%g°", d.Vector.X, d.Vector.Y, d.Vector.Z, d.Tolerance)
}

// canonical flips v so that its first non-zero component in z, y, x order
// is positive. d and -d share the same canonical vector.
func canonical(v r3.Vec) r3.Vec {
	switch {
	case v.Z < 0:
		return r3.Scale(-1, v)
	case v.Z > 0:
		return v
	case v.Y < 0:
		return r3.Scale(-1, v)
	case v.Y > 0:
		return v
	case v.X < 0:
		return r3.Scale(-1, v)
	}
	return v
}

// cleanVec zeroes rounding residue from trigonometric construction
func cleanVec(v r3.Vec) r3.Vec {
	const eps = 1e-12
	if math.Abs(v.X) < eps {
		v.X = 0
	}
	if math.Abs(v.Y) < eps {
		v.Y = 0
	}
	if math.Abs(v.Z) < eps {
		v.Z = 0
	}
	return v
}
