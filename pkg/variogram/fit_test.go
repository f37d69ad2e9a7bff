package variogram

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vargrest/internal/models"
)

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}

func TestFitModelRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		model  Model
		method Method
	}{
		{"spherical lm", Model{Family: Spherical, Nugget: 0.1, Sill: 1.0, Range: 50}, LevenbergMarquardt},
		{"spherical nelder-mead", Model{Family: Spherical, Nugget: 0.1, Sill: 1.0, Range: 50}, NelderMead},
		{"exponential lm", Model{Family: Exponential, Nugget: 0.1, Sill: 1.0, Range: 50}, LevenbergMarquardt},
		{"gaussian lm", Model{Family: Gaussian, Nugget: 0.1, Sill: 1.0, Range: 50}, LevenbergMarquardt},
		{"general exponential lm", Model{Family: GeneralExponential, Nugget: 0.1, Sill: 1.0, Range: 50, Power: DefaultPower}, LevenbergMarquardt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := syntheticPoints(tt.model, 30, 5)
			cfg := DefaultFitConfig()
			cfg.Method = tt.method

			res, err := FitModel(pts, tt.model.Family, cfg)
			require.NoError(t, err)

			got := res.Model
			assert.Less(t, relErr(got.Nugget, tt.model.Nugget), 0.05, "nugget %g", got.Nugget)
			assert.Less(t, relErr(got.Sill, tt.model.Sill), 0.05, "sill %g", got.Sill)
			assert.Less(t, relErr(got.Range, tt.model.Range), 0.05, "range %g", got.Range)
			assert.LessOrEqual(t, got.Range, res.Bounds.RangeMax)
		})
	}
}

func TestFitModelIsDeterministic(t *testing.T) {
	pts := syntheticPoints(Model{Family: Exponential, Nugget: 0.05, Sill: 2, Range: 30}, 20, 4)
	for i, p := range pts {
		pts[i].Semivariance = p.Semivariance * (1 + 0.05*math.Sin(float64(i)))
	}

	a, err := FitModel(pts, Exponential, DefaultFitConfig())
	require.NoError(t, err)
	b, err := FitModel(pts, Exponential, DefaultFitConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Model, b.Model)
}

func TestFitModelIgnoresUndefinedPoints(t *testing.T) {
	pts := syntheticPoints(Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 50}, 30, 5)
	pts = append([]ExperimentalPoint{{Lag: 0.5, Semivariance: math.NaN(), Lo: 0, Hi: 1}}, pts...)

	res, err := FitModel(pts, Spherical, DefaultFitConfig())
	require.NoError(t, err)
	assert.Less(t, relErr(res.Model.Range, 50), 0.05)
}

func TestFitModelRangeCappedAtMaxLag(t *testing.T) {
	// a linear trend has no sill inside the tested lags
	pts := make([]ExperimentalPoint, 10)
	for i := range pts {
		h := float64(i + 1)
		pts[i] = ExperimentalPoint{Lag: h, Semivariance: 0.1 * h, PairCount: 100, Lo: h - 0.5, Hi: h + 0.5}
	}
	cfg := DefaultFitConfig()
	cfg.Bounds = &Bounds{NuggetMax: 1, SillMin: 1e-6, SillMax: 100, RangeMin: 0.1, RangeMax: 1e6}

	var model Model
	res, err := FitModel(pts, Spherical, cfg)
	if err != nil {
		var nc *FitDidNotConvergeError
		require.ErrorAs(t, err, &nc)
		model = nc.Best
	} else {
		model = res.Model
		assert.Equal(t, 10.5, res.Bounds.RangeMax)
	}
	assert.LessOrEqual(t, model.Range, 10.5)
}

func TestFitModelNuggetBelowSill(t *testing.T) {
	pts := syntheticPoints(Model{Family: Exponential, Nugget: 0.8, Sill: 0.2, Range: 20}, 20, 4)
	cfg := DefaultFitConfig()
	cfg.NuggetBelowSill = true

	model := fitOrBest(t, pts, Exponential)
	assert.Greater(t, model.Nugget, model.Sill)

	res, err := FitModel(pts, Exponential, cfg)
	if err != nil {
		var nc *FitDidNotConvergeError
		require.ErrorAs(t, err, &nc)
		assert.LessOrEqual(t, nc.Best.Nugget, nc.Best.Sill)
		return
	}
	assert.LessOrEqual(t, res.Model.Nugget, res.Model.Sill)
}

func TestFitModelErrors(t *testing.T) {
	pts := syntheticPoints(Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 50}, 30, 5)

	t.Run("unsupported family", func(t *testing.T) {
		_, err := FitModel(pts, Family(42), DefaultFitConfig())
		assert.ErrorIs(t, err, ErrUnsupportedFamily)
	})

	t.Run("single point", func(t *testing.T) {
		_, err := FitModel(pts[:1], Spherical, DefaultFitConfig())
		var ie *InsufficientDataError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, 1, ie.Valid)
		assert.Equal(t, 2, ie.Required)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		cfg := DefaultFitConfig()
		cfg.Bounds = &Bounds{NuggetMin: 1, NuggetMax: 0, SillMin: 1, SillMax: 2, RangeMin: 1, RangeMax: 2}
		_, err := FitModel(pts, Spherical, cfg)
		assert.ErrorIs(t, err, ErrInvalidBounds)
	})

	t.Run("iteration budget", func(t *testing.T) {
		cfg := DefaultFitConfig()
		cfg.MaxIterations = 1
		_, err := FitModel(pts, Spherical, cfg)
		var nc *FitDidNotConvergeError
		require.True(t, errors.As(err, &nc))
		assert.ErrorIs(t, err, ErrFitDidNotConverge)
		assert.Equal(t, Spherical, nc.Best.Family)
		assert.Greater(t, nc.Best.Range, 0.0)
	})
}

func TestFitModelTooFewActiveCells(t *testing.T) {
	g := gridFrom(models.Shape{NX: 8, NY: 1, NZ: 1}, models.CellSize{DX: 1, DY: 1, DZ: 1},
		func(i, j, k int) float64 { return float64(i) })
	for i := range g.Mask {
		g.Mask[i] = i == 3
	}

	curve, err := ComputeExperimental(g, mustDirection(r3.Vec{X: 1}, 10), LagConfig{BinWidth: 1, MaxLag: 5})
	require.NoError(t, err)
	for p := range curve.Points() {
		assert.False(t, p.Defined())
	}

	res, err := FitModel(curve.Collect(), Spherical, DefaultFitConfig())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
