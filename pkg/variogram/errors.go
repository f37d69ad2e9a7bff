package variogram

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrInvalidDirection  = errors.New("variogram: invalid direction")
	ErrInsufficientData  = errors.New("variogram: insufficient data")
	ErrFitDidNotConverge = errors.New("variogram: fit did not converge")
	ErrUnsupportedFamily = errors.New("variogram: unsupported model family")
	ErrInvalidLagConfig  = errors.New("variogram: invalid lag configuration")
	ErrInvalidEllipsoid  = errors.New("variogram: invalid anisotropy ellipsoid")
)

// InvalidDirectionError reports a malformed direction vector or tolerance
type InvalidDirectionError struct {
	Vector    r3.Vec
	Tolerance float64
	Reason    string
}

func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("invalid direction (%g, %g, %g) tol=%g: %s",
		e.Vector.X, e.Vector.Y, e.Vector.Z, e.Tolerance, e.Reason)
}

func (e *InvalidDirectionError) Is(target error) bool { return target == ErrInvalidDirection }

// InsufficientDataError reports too few defined experimental points to fit or score
type InsufficientDataError struct {
	Valid    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d defined lag bins, need at least %d", e.Valid, e.Required)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// FitDidNotConvergeError is returned when the optimizer exhausts its budget.
// Best holds the best parameters found so the caller can decide to accept them.
type FitDidNotConvergeError struct {
	Best       Model
	Iterations int
	Cost       float64
}

func (e *FitDidNotConvergeError) Error() string {
	return fmt.Sprintf("fit did not converge after %d iterations (cost %g, best %s)",
		e.Iterations, e.Cost, e.Best)
}

func (e *FitDidNotConvergeError) Is(target error) bool { return target == ErrFitDidNotConverge }

// UnsupportedFamilyError reports an unknown model family name
type UnsupportedFamilyError struct {
	Name string
}

func (e *UnsupportedFamilyError) Error() string {
	return fmt.Sprintf("unsupported variogram family %q", e.Name)
}

func (e *UnsupportedFamilyError) Is(target error) bool { return target == ErrUnsupportedFamily }
