package variogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestScoreQualityPerfectFit(t *testing.T) {
	m := Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 50}
	q := ScoreQuality(m, syntheticPoints(m, 20, 5), DefaultQualityConfig())

	require.True(t, q.Full.Sufficient)
	assert.Equal(t, 1.0, q.Full.Value)
	assert.Equal(t, 1.0, q.X.Value)

	// the points only carry weight along x
	assert.False(t, q.Y.Sufficient)
	assert.True(t, math.IsNaN(q.Y.Value))
	assert.False(t, q.Z.Sufficient)
	assert.Equal(t, "insufficient data", q.Z.String())
}

func TestScoreQualityNonIncreasingWithNoise(t *testing.T) {
	m := Model{Family: Exponential, Nugget: 0.05, Sill: 1, Range: 40}
	clean := syntheticPoints(m, 25, 4)

	for _, baseline := range []Baseline{BaselineTotalSill, BaselineWeightedMean} {
		cfg := DefaultQualityConfig()
		cfg.Baseline = baseline

		prev := math.Inf(1)
		for _, eps := range []float64{0, 0.01, 0.05, 0.1, 0.2, 0.4, 0.8} {
			noisy := make([]ExperimentalPoint, len(clean))
			copy(noisy, clean)
			for i := range noisy {
				sign := 1.0
				if i%2 == 1 {
					sign = -1
				}
				noisy[i].Semivariance *= 1 + sign*eps
			}

			q := ScoreQuality(m, noisy, cfg)
			require.True(t, q.Full.Sufficient)
			assert.GreaterOrEqual(t, q.Full.Value, 0.0)
			assert.LessOrEqual(t, q.Full.Value, 1.0)
			if baseline == BaselineTotalSill {
				assert.LessOrEqual(t, q.Full.Value, prev, "%s eps=%g", baseline, eps)
				prev = q.Full.Value
			}
		}
	}
}

func TestScoreQualityFlatFitScoresZero(t *testing.T) {
	pts := syntheticPoints(Model{Family: Spherical, Nugget: 0, Sill: 1, Range: 60}, 20, 5)

	num, den := 0.0, 0.0
	for _, p := range pts {
		num += float64(p.PairCount) * p.Semivariance
		den += float64(p.PairCount)
	}
	flat := Model{Family: Spherical, Nugget: num / den, Sill: 1e-15, Range: 1}

	cfg := DefaultQualityConfig()
	cfg.Baseline = BaselineWeightedMean
	q := ScoreQuality(flat, pts, cfg)
	require.True(t, q.Full.Sufficient)
	assert.InDelta(t, 0, q.Full.Value, 1e-6)

	// a fit worse than the baseline is clamped
	bad := Model{Family: Spherical, Nugget: 5, Sill: 1, Range: 1}
	assert.Equal(t, 0.0, ScoreQuality(bad, pts, cfg).Full.Value)
}

func TestScoreQualityInsufficientData(t *testing.T) {
	m := Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 50}
	pts := syntheticPoints(m, 3, 5)
	pts[1].PairCount = 0
	pts[1].Semivariance = math.NaN()
	pts[2].PairCount = 0
	pts[2].Semivariance = math.NaN()

	q := ScoreQuality(m, pts, DefaultQualityConfig())
	assert.False(t, q.Full.Sufficient)
	assert.True(t, math.IsNaN(q.Full.Value))
	assert.False(t, q.X.Sufficient)

	q = ScoreQuality(m, nil, DefaultQualityConfig())
	assert.False(t, q.Full.Sufficient)
}

func TestPoolQualitySplitsAxes(t *testing.T) {
	horizontal := Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 50}
	vertical := Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 5}

	hpts := syntheticPoints(horizontal, 20, 5)
	vpts := syntheticPoints(vertical, 10, 1)
	for i := range vpts {
		vpts[i].AxisShare = r3.Vec{Z: 1}
		vpts[i].Semivariance *= 1.1
	}

	cfg := DefaultQualityConfig()
	pooled := PoolQuality([]ScoredCurve{{horizontal, hpts}, {vertical, vpts}}, cfg)
	alone := ScoreQuality(vertical, vpts, cfg)

	assert.Equal(t, 1.0, pooled.X.Value)
	assert.False(t, pooled.Y.Sufficient)
	assert.InDelta(t, alone.Z.Value, pooled.Z.Value, 1e-12)
	assert.Less(t, pooled.Z.Value, 1.0)
	assert.Greater(t, pooled.Full.Value, pooled.Z.Value)
}

func TestParseBaseline(t *testing.T) {
	for _, b := range []Baseline{BaselineTotalSill, BaselineWeightedMean} {
		got, err := ParseBaseline(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBaseline("median")
	assert.Error(t, err)
}

func TestBaselineAgainstFlatData(t *testing.T) {
	m := Model{Family: Spherical, Nugget: 0, Sill: 1, Range: 40}
	pts := syntheticPoints(m, 8, 5)
	for i := range pts {
		pts[i].Semivariance = 0.5
	}

	// a flat line matches the data exactly, so the curved model gains nothing
	cfg := DefaultQualityConfig()
	cfg.Baseline = BaselineWeightedMean
	q := ScoreQuality(m, pts, cfg)
	require.True(t, q.Full.Sufficient)
	assert.Equal(t, 0.0, q.Full.Value)

	// the total sill baseline only sees the model, so the same fit scores higher
	q = ScoreQuality(m, pts, DefaultQualityConfig())
	require.True(t, q.Full.Sufficient)
	assert.InDelta(t, 0.547, q.Full.Value, 0.01)
}
