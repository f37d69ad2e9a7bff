// Package estimation runs the directional variogram estimation of a grid:
// one independent task per direction followed by the anisotropy assembly.
package estimation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vargrest/internal/models"
	"vargrest/pkg/logging"
	"vargrest/pkg/variogram"
)

// RunConfig holds everything a run needs besides the grid and directions
type RunConfig struct {
	// Identifier names the run in reports, e.g. the input file stem
	Identifier string

	// Subset is copied to the report to describe the analyzed grid
	Subset Subset

	Family variogram.Family

	// Lag applies to horizontal directions, VerticalLag to directions
	// closer to z. Zero values are derived from the grid geometry.
	Lag         variogram.LagConfig
	VerticalLag variogram.LagConfig

	Fit     variogram.FitConfig
	Quality variogram.QualityConfig

	// AcceptBestEffort keeps the best parameters of a fit that ran out of
	// iterations instead of failing the direction
	AcceptBestEffort bool

	// Workers bounds the directions computed at once; zero means one per CPU
	Workers int
}

// DefaultRunConfig returns a spherical fit with derived lags
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Family:  variogram.Spherical,
		Fit:     variogram.DefaultFitConfig(),
		Quality: variogram.DefaultQualityConfig(),
	}
}

// Run estimates a variogram along every direction of set and assembles
// the report. A malformed grid or direction set aborts the run. Failures
// of a single direction are recorded in its result and never affect the
// other directions.
func Run(g *models.Grid, set DirectionSet, cfg RunConfig) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	if !cfg.Family.Valid() {
		return nil, &variogram.UnsupportedFamilyError{Name: cfg.Family.String()}
	}

	report := &Report{
		ID:         uuid.NewString(),
		Identifier: cfg.Identifier,
		Family:     cfg.Family,
		Subset:     cfg.Subset,
		Grid:       summarizeGrid(g),
		Directions: make([]DirectionResult, len(set)),
		CreatedAt:  time.Now().UTC(),
	}
	logger := logging.With().
		Str("component", "estimation").
		Str("run", report.ID).
		Logger()
	logger.Info().
		Str("family", cfg.Family.String()).
		Int("directions", len(set)).
		Int("active_cells", report.Grid.ActiveCells).
		Msg("estimation started")

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, d := range set {
		lag := lagFor(g, d, cfg)
		eg.Go(func() error {
			// each task owns its slot
			report.Directions[i] = runDirection(g, d, lag, cfg, logger.With().Str("direction", d.Name).Logger())
			return nil
		})
	}
	// tasks record failures in their slot and never return an error
	_ = eg.Wait()

	aggregate(report, cfg, logger)
	logger.Info().
		Int("failed", report.FailedCount()).
		Msg("estimation finished")
	return report, nil
}

func runDirection(g *models.Grid, d NamedDirection, lag variogram.LagConfig, cfg RunConfig, log zerolog.Logger) DirectionResult {
	res := DirectionResult{
		Name:      d.Name,
		Direction: d.Direction,
		Lag:       lag,
		Stage:     NotStarted,
	}
	advance := func(s Stage) {
		res.Stage = s
		log.Debug().Stringer("stage", s).Msg("stage reached")
	}
	fail := func(err error) DirectionResult {
		res.Failed = true
		res.Err = err
		res.Reason = err.Error()
		log.Warn().Err(err).Stringer("stage", res.Stage).Msg("direction failed")
		return res
	}

	advance(Binning)
	curve, err := variogram.ComputeExperimental(g, d.Direction, lag)
	if err != nil {
		return fail(err)
	}
	res.Points = curve.Collect()
	advance(ExperimentalComputed)

	fit, err := variogram.FitModel(res.Points, cfg.Family, cfg.Fit)
	var nc *variogram.FitDidNotConvergeError
	switch {
	case errors.As(err, &nc):
		best := nc.Best
		res.BestEffort = &best
		if !cfg.AcceptBestEffort {
			return fail(err)
		}
		log.Warn().Err(err).Msg("accepting best effort fit")
		res.Model = &best
		res.Iterations = nc.Iterations
	case err != nil:
		return fail(err)
	default:
		res.Model = &fit.Model
		res.Converged = true
		res.Iterations = fit.Iterations
	}
	advance(Fitted)

	res.Quality = variogram.ScoreQuality(*res.Model, res.Points, cfg.Quality)
	advance(Scored)
	return res
}

// aggregate pools the quality of the scored directions and assembles the
// ellipsoid when the principal directions all fitted
func aggregate(r *Report, cfg RunConfig, log zerolog.Logger) {
	var curves []variogram.ScoredCurve
	for i := range r.Directions {
		d := &r.Directions[i]
		if d.Failed {
			continue
		}
		curves = append(curves, variogram.ScoredCurve{Model: *d.Model, Points: d.Points})
		d.Stage = Aggregated
	}
	if len(curves) > 0 {
		r.Quality = variogram.PoolQuality(curves, cfg.Quality)
	} else {
		insufficient := variogram.InsufficientScore()
		r.Quality = variogram.QualityFactor{Full: insufficient, X: insufficient, Y: insufficient, Z: insufficient}
	}

	axes := make(map[string]variogram.AxisFit, 3)
	var missing []string
	for _, name := range []string{Major, Minor, Vertical} {
		d := r.Direction(name)
		switch {
		case d == nil:
			missing = append(missing, name+" not requested")
		case d.Failed:
			missing = append(missing, name+" failed")
		default:
			axes[name] = variogram.AxisFit{Direction: d.Direction, Range: d.Model.Range}
		}
	}
	if len(missing) > 0 {
		r.EllipsoidError = fmt.Sprintf("ellipsoid unavailable: %v", missing)
		log.Debug().Str("reason", r.EllipsoidError).Msg("skipping ellipsoid")
		return
	}

	e, err := variogram.NewEllipsoid(axes[Major], axes[Minor], axes[Vertical])
	if err != nil {
		r.EllipsoidError = err.Error()
		log.Warn().Err(err).Msg("ellipsoid assembly failed")
		return
	}
	r.Ellipsoid = e
	log.Debug().
		Float64("azimuth", e.Azimuth).
		Float64("r_major", e.RangeMajor).
		Float64("r_minor", e.RangeMinor).
		Float64("r_vertical", e.RangeVertical).
		Msg("ellipsoid assembled")
}

func summarizeGrid(g *models.Grid) GridSummary {
	s := GridSummary{
		Shape:       g.Shape,
		CellSize:    g.CellSize,
		Attribute:   g.Attribute,
		Categorical: g.Categorical,
		ActiveCells: g.ActiveCount(),
		Variance:    g.Variance(),
	}
	if s.ActiveCells == 0 {
		s.Variance = math.NaN()
	}
	return s
}
