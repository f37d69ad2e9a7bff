package variogram

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// minFitPoints is the smallest number of defined bins a fit accepts
const minFitPoints = 2

// ErrInvalidBounds is returned when a lower bound exceeds its upper bound
var ErrInvalidBounds = errors.New("variogram: invalid parameter bounds")

// Method selects the optimizer behind FitModel
type Method int

const (
	// LevenbergMarquardt is a damped Gauss-Newton iteration whose steps are
	// projected onto the parameter box
	LevenbergMarquardt Method = iota
	// NelderMead minimizes the weighted cost over the projected box
	NelderMead
)

// ParseMethod returns the method with the given name
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lm", "levenberg-marquardt", "levenberg_marquardt":
		return LevenbergMarquardt, nil
	case "nm", "nelder-mead", "nelder_mead", "neldermead":
		return NelderMead, nil
	}
	return 0, fmt.Errorf("unknown fit method %q", name)
}

func (m Method) String() string {
	if m == NelderMead {
		return "nelder-mead"
	}
	return "levenberg-marquardt"
}

// Bounds is the parameter box of a fit
type Bounds struct {
	NuggetMin, NuggetMax float64
	SillMin, SillMax     float64
	RangeMin, RangeMax   float64
}

func (b Bounds) validate() error {
	if b.NuggetMin < 0 || b.NuggetMin > b.NuggetMax {
		return fmt.Errorf("%w: nugget [%g, %g]", ErrInvalidBounds, b.NuggetMin, b.NuggetMax)
	}
	if b.SillMin <= 0 || b.SillMin > b.SillMax {
		return fmt.Errorf("%w: sill [%g, %g]", ErrInvalidBounds, b.SillMin, b.SillMax)
	}
	if b.RangeMin <= 0 || b.RangeMin > b.RangeMax {
		return fmt.Errorf("%w: range [%g, %g]", ErrInvalidBounds, b.RangeMin, b.RangeMax)
	}
	return nil
}

// FitConfig holds the optimizer settings
type FitConfig struct {
	// Bounds overrides the data-derived parameter box. The range upper
	// bound is always capped at the largest lag tested.
	Bounds *Bounds

	MaxIterations int
	Tolerance     float64

	// NuggetBelowSill constrains nugget <= sill
	NuggetBelowSill bool

	// RangeFraction is the fraction of the sill whose first crossing gives
	// the initial range guess
	RangeFraction float64

	Method Method

	// Power is the exponent of the general exponential family
	Power float64
}

// DefaultFitConfig returns the settings used when none are given
func DefaultFitConfig() FitConfig {
	return FitConfig{
		MaxIterations: 500,
		Tolerance:     1e-10,
		RangeFraction: 0.95,
		Method:        LevenbergMarquardt,
		Power:         DefaultPower,
	}
}

func (c FitConfig) withDefaults() FitConfig {
	def := DefaultFitConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if !(c.Tolerance > 0) {
		c.Tolerance = def.Tolerance
	}
	if !(c.RangeFraction > 0) || c.RangeFraction > 1 {
		c.RangeFraction = def.RangeFraction
	}
	if !(c.Power > 0) {
		c.Power = def.Power
	}
	return c
}

// FitResult is a converged fit
type FitResult struct {
	Model      Model
	Initial    Model
	Bounds     Bounds
	Iterations int

	// Cost is the pair-count weighted mean squared residual
	Cost float64
}

// FitModel fits family to the defined points by minimizing the pair-count
// weighted sum of squared residuals inside the parameter bounds.
//
// Fewer than two defined points gives an *InsufficientDataError. When the
// optimizer runs out of iterations a *FitDidNotConvergeError carries the
// best parameters found.
func FitModel(points []ExperimentalPoint, family Family, cfg FitConfig) (*FitResult, error) {
	if !family.Valid() {
		return nil, &UnsupportedFamilyError{Name: family.String()}
	}
	cfg = cfg.withDefaults()

	pts := DefinedPoints(points)
	if len(pts) < minFitPoints {
		return nil, &InsufficientDataError{Valid: len(pts), Required: minFitPoints}
	}
	slices.SortStableFunc(pts, func(a, b ExperimentalPoint) int {
		switch {
		case a.Lag < b.Lag:
			return -1
		case a.Lag > b.Lag:
			return 1
		}
		return 0
	})

	maxLag := maxTestedLag(points)
	bounds, err := resolveBounds(cfg.Bounds, pts, maxLag)
	if err != nil {
		return nil, err
	}

	p := newFitProblem(pts, family, cfg.Power, bounds, cfg.NuggetBelowSill)
	init := p.project(p.scaled(initialGuess(pts, cfg.RangeFraction, maxLag)))

	var (
		u          []float64
		iterations int
		converged  bool
	)
	switch cfg.Method {
	case NelderMead:
		u, iterations, converged, err = p.nelderMead(init, cfg)
		if err != nil {
			return nil, err
		}
	default:
		u, iterations, converged = p.levenbergMarquardt(init, cfg)
	}

	best := p.model(u)
	cost := p.cost(u)
	if !converged {
		return nil, &FitDidNotConvergeError{Best: best, Iterations: iterations, Cost: cost}
	}
	return &FitResult{
		Model:      best,
		Initial:    p.model(init),
		Bounds:     bounds,
		Iterations: iterations,
		Cost:       cost,
	}, nil
}

// maxTestedLag is the largest separation any bin covered
func maxTestedLag(points []ExperimentalPoint) float64 {
	m := 0.0
	for _, p := range points {
		m = math.Max(m, math.Max(p.Hi, p.Lag))
	}
	return m
}

func maxSemivariance(pts []ExperimentalPoint) float64 {
	m := 0.0
	for _, p := range pts {
		m = math.Max(m, p.Semivariance)
	}
	return m
}

// resolveBounds derives the parameter box from the data unless the caller
// gave one, and caps the range at the largest lag tested
func resolveBounds(user *Bounds, pts []ExperimentalPoint, maxLag float64) (Bounds, error) {
	scale := math.Max(maxSemivariance(pts), 1e-9)
	b := Bounds{
		NuggetMin: 0,
		NuggetMax: scale,
		SillMin:   1e-12 * math.Max(scale, 1),
		SillMax:   2 * scale,
		RangeMin:  1e-6 * maxLag,
		RangeMax:  maxLag,
	}
	if user != nil {
		b = *user
		if b.RangeMax > maxLag {
			b.RangeMax = maxLag
		}
	}
	if err := b.validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// initialGuess estimates (nugget, sill, range) from the data: the total
// sill from the largest lags, the nugget by extrapolating the first two
// points to zero, the range as the first lag reaching fraction of the sill
func initialGuess(pts []ExperimentalPoint, fraction, maxLag float64) [3]float64 {
	n := len(pts)
	k := max(1, n/3)
	vals := make([]float64, 0, k)
	weights := make([]float64, 0, k)
	for _, p := range pts[n-k:] {
		vals = append(vals, p.Semivariance)
		weights = append(weights, float64(p.PairCount))
	}
	total := stat.Mean(vals, weights)

	nugget := 0.0
	if n >= 2 && pts[1].Lag > pts[0].Lag {
		slope := (pts[1].Semivariance - pts[0].Semivariance) / (pts[1].Lag - pts[0].Lag)
		nugget = pts[0].Semivariance - slope*pts[0].Lag
	}
	nugget = math.Max(0, math.Min(nugget, 0.5*total))

	rng := 0.5 * maxLag
	for _, p := range pts {
		if p.Semivariance >= fraction*total {
			rng = p.Lag
			break
		}
	}
	return [3]float64{nugget, total - nugget, rng}
}

// fitProblem holds the weighted data in a parameter space scaled so that
// every coordinate is of order one
type fitProblem struct {
	lags     []float64
	gamma    []float64
	sqrtW    []float64
	family   Family
	power    float64
	scale    [3]float64
	bounds   Bounds
	nugBelow bool
}

func newFitProblem(pts []ExperimentalPoint, family Family, power float64, b Bounds, nuggetBelowSill bool) *fitProblem {
	p := &fitProblem{
		lags:     make([]float64, len(pts)),
		gamma:    make([]float64, len(pts)),
		sqrtW:    make([]float64, len(pts)),
		family:   family,
		power:    power,
		bounds:   b,
		nugBelow: nuggetBelowSill,
	}
	total := 0.0
	for _, pt := range pts {
		total += float64(pt.PairCount)
	}
	for i, pt := range pts {
		p.lags[i] = pt.Lag
		p.gamma[i] = pt.Semivariance
		p.sqrtW[i] = math.Sqrt(float64(pt.PairCount) / total)
	}
	level := math.Max(maxSemivariance(pts), 1e-9)
	p.scale = [3]float64{level, level, b.RangeMax}
	return p
}

func (p *fitProblem) scaled(params [3]float64) []float64 {
	return []float64{params[0] / p.scale[0], params[1] / p.scale[1], params[2] / p.scale[2]}
}

func (p *fitProblem) model(u []float64) Model {
	return Model{
		Family: p.family,
		Nugget: u[0] * p.scale[0],
		Sill:   u[1] * p.scale[1],
		Range:  u[2] * p.scale[2],
		Power:  p.power,
	}
}

// project clamps u onto the bounds and the optional nugget <= sill constraint
func (p *fitProblem) project(u []float64) []float64 {
	b := p.bounds
	nugget := clamp(u[0]*p.scale[0], b.NuggetMin, b.NuggetMax)
	sill := clamp(u[1]*p.scale[1], b.SillMin, b.SillMax)
	rng := clamp(u[2]*p.scale[2], b.RangeMin, b.RangeMax)
	if p.nugBelow && nugget > sill {
		nugget = sill
	}
	return []float64{nugget / p.scale[0], sill / p.scale[1], rng / p.scale[2]}
}

// predict fills y with the weighted model values at u
func (p *fitProblem) predict(y, u []float64) {
	m := p.model(u)
	for i, h := range p.lags {
		y[i] = p.sqrtW[i] * m.Evaluate(h)
	}
}

// residuals fills r with the weighted residuals at u
func (p *fitProblem) residuals(r, u []float64) {
	p.predict(r, u)
	for i := range r {
		r[i] = p.sqrtW[i]*p.gamma[i] - r[i]
	}
}

func (p *fitProblem) cost(u []float64) float64 {
	r := make([]float64, len(p.lags))
	p.residuals(r, u)
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return s
}

// levenbergMarquardt runs the projected damped Gauss-Newton iteration.
// It stops when an accepted step lowers the cost by less than the relative
// tolerance, when the cost vanishes, or when no damping yields a descent
// step inside the bounds.
func (p *fitProblem) levenbergMarquardt(u0 []float64, cfg FitConfig) ([]float64, int, bool) {
	const (
		lambdaMin = 1e-12
		lambdaMax = 1e12
	)
	m := len(p.lags)
	u := slices.Clone(u0)
	cost := p.cost(u)
	absTol := 1e-20 * math.Pow(math.Max(p.scale[0], 1), 2)
	lambda := 1e-3

	y := make([]float64, m)
	r := make([]float64, m)
	jac := mat.NewDense(m, 3, nil)

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if cost <= absTol {
			return u, iter - 1, true
		}

		p.predict(y, u)
		fd.Jacobian(jac, p.predict, u, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: y,
		})
		p.residuals(r, u)

		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		for {
			damped := mat.NewSymDense(3, nil)
			damped.CopySym(&jtj)
			for i := 0; i < 3; i++ {
				damped.SetSym(i, i, jtj.At(i, i)+lambda*(jtj.At(i, i)+1e-12))
			}

			var chol mat.Cholesky
			var step mat.VecDense
			if ok := chol.Factorize(damped); ok && chol.SolveVecTo(&step, &grad) == nil {
				trial := p.project([]float64{u[0] + step.AtVec(0), u[1] + step.AtVec(1), u[2] + step.AtVec(2)})
				trialCost := p.cost(trial)
				if trialCost < cost {
					decrease := (cost - trialCost) / math.Max(cost, absTol)
					u, cost = trial, trialCost
					lambda = math.Max(lambda/10, lambdaMin)
					if decrease < cfg.Tolerance {
						return u, iter, true
					}
					break
				}
			}

			lambda *= 10
			if lambda > lambdaMax {
				// no descent direction left inside the box
				return u, iter, true
			}
		}
	}
	return u, cfg.MaxIterations, false
}

// nelderMead minimizes the cost of the projected parameters with gonum's
// simplex method
func (p *fitProblem) nelderMead(u0 []float64, cfg FitConfig) ([]float64, int, bool, error) {
	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			return p.cost(p.project(u))
		},
	}
	settings := &optimize.Settings{
		MajorIterations: cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   cfg.Tolerance * p.scale[0] * p.scale[0],
			Relative:   cfg.Tolerance,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(problem, u0, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, 0, false, fmt.Errorf("nelder-mead: %w", err)
	}
	u := p.project(res.X)
	switch res.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return u, res.Stats.MajorIterations, false, nil
	}
	if err != nil {
		return nil, res.Stats.MajorIterations, false, fmt.Errorf("nelder-mead: %w", err)
	}
	return u, res.Stats.MajorIterations, true, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
