package variogram

import (
	"fmt"
	"math"
	"strings"
)

// Family identifies a theoretical variogram shape
type Family int

const (
	Spherical Family = iota
	Exponential
	Gaussian
	GeneralExponential
)

// DefaultPower is the exponent of the general exponential family
const DefaultPower = 1.5

// Families lists every supported family
var Families = []Family{Spherical, Exponential, Gaussian, GeneralExponential}

// ParseFamily returns the family with the given name (case insensitive)
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spherical", "sph":
		return Spherical, nil
	case "exponential", "exp":
		return Exponential, nil
	case "gaussian", "gau":
		return Gaussian, nil
	case "general_exponential", "general-exponential", "generalexponential", "genexp":
		return GeneralExponential, nil
	}
	return 0, &UnsupportedFamilyError{Name: name}
}

func (f Family) String() string {
	switch f {
	case Spherical:
		return "spherical"
	case Exponential:
		return "exponential"
	case Gaussian:
		return "gaussian"
	case GeneralExponential:
		return "general_exponential"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Valid reports whether f is one of the supported families
func (f Family) Valid() bool {
	return f >= Spherical && f <= GeneralExponential
}

// MarshalText implements encoding.TextMarshaler
func (f Family) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, &UnsupportedFamilyError{Name: f.String()}
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// correlation returns 1 - rho(h/range) for the family, i.e. the normalized
// structured part of the variogram in [0, 1]
func (f Family) correlation(h, rng, power float64) float64 {
	switch f {
	case Spherical:
		if h >= rng {
			return 1
		}
		r := h / rng
		return 1.5*r - 0.5*r*r*r
	case Exponential:
		return 1 - math.Exp(-3*h/rng)
	case Gaussian:
		return 1 - math.Exp(-3*h*h/(rng*rng))
	case GeneralExponential:
		if power <= 0 {
			power = DefaultPower
		}
		return 1 - math.Exp(-3*math.Pow(h/rng, power))
	}
	return math.NaN()
}

// Model is a fitted theoretical variogram. Sill is the partial sill of
// the structured component, so the curve levels out at Nugget + Sill.
type Model struct {
	Family Family  `json:"family" yaml:"family"`
	Nugget float64 `json:"nugget" yaml:"nugget"`
	Sill   float64 `json:"sill" yaml:"sill"`
	Range  float64 `json:"range" yaml:"range"`

	// Power is only used by the general exponential family
	Power float64 `json:"power,omitempty" yaml:"power,omitempty"`
}

// Evaluate returns the semivariance at separation h
func (m Model) Evaluate(h float64) float64 {
	if h == 0 {
		return 0
	}
	h = math.Abs(h)
	return m.Nugget + m.Sill*m.Family.correlation(h, m.Range, m.Power)
}

// Total returns the level of the curve at large separation
func (m Model) Total() float64 {
	return m.Nugget + m.Sill
}

// Sigma returns the standard deviation implied by the total sill
func (m Model) Sigma() float64 {
	return math.Sqrt(m.Total())
}

func (m Model) String() string {
	return fmt.Sprintf("%s{nugget=%.4g sill=%.4g range=%.4g}", m.Family, m.Nugget, m.Sill, m.Range)
}
