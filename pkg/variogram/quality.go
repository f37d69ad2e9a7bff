package variogram

import (
	"fmt"
	"math"
	"strings"
)

// Baseline selects the flat curve a fit is compared against
type Baseline int

const (
	// BaselineTotalSill compares against a pure nugget model at the fitted
	// total sill. The score then depends on the data only through the
	// model residuals, which keeps it non-increasing as noise is added for
	// a fixed model. The baseline is not measured against the data, so a
	// model worse than the best flat line can still score above 0; use
	// BaselineWeightedMean to compare against the data.
	BaselineTotalSill Baseline = iota
	// BaselineWeightedMean compares against the pair weighted mean of the
	// experimental semivariances, i.e. the best flat fit to the data
	BaselineWeightedMean
)

// ParseBaseline returns the baseline with the given name
func ParseBaseline(name string) (Baseline, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "total_sill", "total-sill", "sill":
		return BaselineTotalSill, nil
	case "weighted_mean", "weighted-mean", "mean":
		return BaselineWeightedMean, nil
	}
	return 0, fmt.Errorf("unknown quality baseline %q", name)
}

func (b Baseline) String() string {
	if b == BaselineWeightedMean {
		return "weighted_mean"
	}
	return "total_sill"
}

// QualityConfig controls the scorer
type QualityConfig struct {
	Baseline Baseline

	// MinPoints is the number of weighted points an axis needs for a score
	MinPoints int

	// PerfectTolerance is the residual RMS, relative to max(1, data level),
	// under which a fit counts as exact
	PerfectTolerance float64
}

// DefaultQualityConfig returns the scorer defaults
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		Baseline:         BaselineTotalSill,
		MinPoints:        2,
		PerfectTolerance: 1e-9,
	}
}

func (c QualityConfig) withDefaults() QualityConfig {
	def := DefaultQualityConfig()
	if c.MinPoints < 2 {
		c.MinPoints = def.MinPoints
	}
	if !(c.PerfectTolerance > 0) {
		c.PerfectTolerance = def.PerfectTolerance
	}
	return c
}

// Score is a quality value in [0, 1], or an explicit lack of data
type Score struct {
	Value      float64
	Sufficient bool
}

// InsufficientScore is the score of an axis without enough data
func InsufficientScore() Score {
	return Score{Value: math.NaN()}
}

func (s Score) String() string {
	if !s.Sufficient {
		return "insufficient data"
	}
	return fmt.Sprintf("%.4f", s.Value)
}

// QualityFactor holds the overall score and one score per grid axis.
// 1 is a perfect fit, 0 is a fit no better than the flat baseline.
type QualityFactor struct {
	Full Score
	X    Score
	Y    Score
	Z    Score
}

// ScoredCurve is a model together with the points it was fitted to
type ScoredCurve struct {
	Model  Model
	Points []ExperimentalPoint
}

// ScoreQuality scores how well m reproduces the experimental points, overall
// and per axis. A point contributes to an axis in proportion to its pair
// count times the squared direction cosine of its separations with that axis.
func ScoreQuality(m Model, points []ExperimentalPoint, cfg QualityConfig) QualityFactor {
	return PoolQuality([]ScoredCurve{{Model: m, Points: points}}, cfg)
}

// PoolQuality scores several directional fits together, e.g. the three
// principal directions of an anisotropic estimate
func PoolQuality(curves []ScoredCurve, cfg QualityConfig) QualityFactor {
	cfg = cfg.withDefaults()
	var sums [4]axisSums
	level := 1.0
	for _, c := range curves {
		sums[0].add(c, cfg.Baseline, func(ExperimentalPoint) float64 { return 1 })
		sums[1].add(c, cfg.Baseline, func(p ExperimentalPoint) float64 { return p.AxisShare.X })
		sums[2].add(c, cfg.Baseline, func(p ExperimentalPoint) float64 { return p.AxisShare.Y })
		sums[3].add(c, cfg.Baseline, func(p ExperimentalPoint) float64 { return p.AxisShare.Z })
		for _, p := range c.Points {
			if p.Defined() {
				level = math.Max(level, p.Semivariance)
			}
		}
	}

	tol := cfg.PerfectTolerance * level
	return QualityFactor{
		Full: sums[0].score(cfg.MinPoints, tol),
		X:    sums[1].score(cfg.MinPoints, tol),
		Y:    sums[2].score(cfg.MinPoints, tol),
		Z:    sums[3].score(cfg.MinPoints, tol),
	}
}

type axisSums struct {
	model  float64 // weighted squared residuals of the model
	base   float64 // weighted squared residuals of the baseline
	weight float64
	n      int
}

// add accumulates the defined points of c whose share on the axis is
// positive
func (s *axisSums) add(c ScoredCurve, baseline Baseline, share func(ExperimentalPoint) float64) {
	const minShare = 1e-9

	flat := c.Model.Total()
	if baseline == BaselineWeightedMean {
		num, den := 0.0, 0.0
		for _, p := range c.Points {
			if w := float64(p.PairCount) * share(p); p.Defined() && share(p) > minShare {
				num += w * p.Semivariance
				den += w
			}
		}
		if den == 0 {
			return
		}
		flat = num / den
	}

	for _, p := range c.Points {
		if !p.Defined() || share(p) <= minShare {
			continue
		}
		w := float64(p.PairCount) * share(p)
		mv := c.Model.Evaluate(p.Lag)
		switch baseline {
		case BaselineWeightedMean:
			s.base += w * (p.Semivariance - flat) * (p.Semivariance - flat)
		default:
			s.base += w * (mv - flat) * (mv - flat)
		}
		s.model += w * (p.Semivariance - mv) * (p.Semivariance - mv)
		s.weight += w
		s.n++
	}
}

// score turns the sums into 1 - SSE_model/SSE_baseline clamped to [0, 1].
// tol is the residual RMS below which a fit counts as exact.
func (s axisSums) score(minPoints int, tol float64) Score {
	if s.n < minPoints || s.weight == 0 {
		return InsufficientScore()
	}
	floor := tol * tol * s.weight
	if s.model <= floor {
		return Score{Value: 1, Sufficient: true}
	}
	if s.base <= floor {
		return Score{Value: 0, Sufficient: true}
	}
	return Score{Value: clamp(1-s.model/s.base, 0, 1), Sufficient: true}
}
