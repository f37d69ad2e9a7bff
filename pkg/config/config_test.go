package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vargrest/internal/models"
	"vargrest/pkg/estimation"
	"vargrest/pkg/variogram"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	if cfg.Processing.Family != "spherical" {
		t.Errorf("expected default family spherical, got %s", cfg.Processing.Family)
	}
	if cfg.Fit.RangeFraction != 0.95 {
		t.Errorf("expected range fraction 0.95, got %g", cfg.Fit.RangeFraction)
	}
	if cfg.Quality.Baseline != "total_sill" {
		t.Errorf("expected total_sill baseline, got %s", cfg.Quality.Baseline)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Fit, cfg.Fit)
	assert.Equal(t, DefaultConfig().Output.Formats, cfg.Output.Formats)
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vargrest.yaml")
	content := `
processing:
  family: exponential
  indicators: [1, 3]
  box: [0, 10, 0, 10, 0, 4]
lag:
  binWidth: 25
  maxLag: 500
fit:
  method: nelder-mead
  maxIterations: 300
directions:
  azimuth: 45
output:
  dir: results
  formats: [yaml]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("VARGREST_FIT_MAX_ITERATIONS", "120")
	t.Setenv("VARGREST_OUTPUT_FORMATS", "json,csv")
	t.Setenv("VARGREST_LOGGING_LEVEL", "debug")
	t.Setenv("VARGREST_UNKNOWN_KEY", "ignored")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "exponential", cfg.Processing.Family)
	assert.Equal(t, []float64{1, 3}, cfg.Processing.Indicators)
	assert.Equal(t, []int{0, 10, 0, 10, 0, 4}, cfg.Processing.Box)
	assert.Equal(t, 25.0, cfg.Lag.BinWidth)
	assert.Equal(t, "nelder-mead", cfg.Fit.Method)
	assert.Equal(t, 120, cfg.Fit.MaxIterations, "environment overrides the file")
	assert.Equal(t, 0.95, cfg.Fit.RangeFraction, "defaults fill the gaps")
	assert.Equal(t, 45.0, cfg.Directions.Azimuth)
	assert.Equal(t, "results", cfg.Output.Dir)
	assert.Equal(t, []string{"json", "csv"}, cfg.Output.Formats)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotNil(t, cfg.Logging.Output)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown family", "processing:\n  family: cubic\n"},
		{"unknown method", "fit:\n  method: gradient\n"},
		{"range fraction above one", "fit:\n  rangeFraction: 1.5\n"},
		{"short box", "processing:\n  box: [0, 1, 2]\n"},
		{"bad format", "output:\n  formats: [xml]\n"},
		{"tolerance above 90", "directions:\n  horizontalTolerance: 100\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"VARGREST_FIT_MAX_ITERATIONS", "fit.maxIterations"},
		{"VARGREST_PROCESSING_FAMILY", "processing.family"},
		{"VARGREST_DIRECTIONS_AUTO_AZIMUTH", "directions.autoAzimuth"},
		{"VARGREST_INPUT_ARCHEL_CODES", "input.archelCodes"},
		{"VARGREST_SHEARLET_SCALES", ""},
		{"VARGREST_FIT", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.Family = "gaussian"
	cfg.Processing.Workers = 3
	cfg.Processing.Box = []int{0, 5, 0, 5, 0, 2}
	cfg.Fit.Method = "nm"
	cfg.Fit.AcceptBestEffort = true
	cfg.Quality.Baseline = "weighted_mean"
	cfg.Lag.VerticalBinWidth = 0.5
	cfg.Lag.VerticalMaxLag = 4

	rc, err := cfg.RunConfig()
	require.NoError(t, err)
	assert.Equal(t, variogram.Gaussian, rc.Family)
	assert.Equal(t, variogram.NelderMead, rc.Fit.Method)
	assert.Equal(t, variogram.BaselineWeightedMean, rc.Quality.Baseline)
	assert.Equal(t, 3, rc.Workers)
	assert.True(t, rc.AcceptBestEffort)
	assert.Equal(t, variogram.LagConfig{BinWidth: 0.5, MaxLag: 4}, rc.VerticalLag)
	assert.Equal(t, []int{0, 5, 0, 5, 0, 2}, rc.Subset.Box)

	cfg.Processing.Family = "cubic"
	_, err = cfg.RunConfig()
	assert.ErrorIs(t, err, variogram.ErrUnsupportedFamily)
}

func TestDirectionSet(t *testing.T) {
	shape := models.Shape{NX: 20, NY: 20, NZ: 2}
	g := models.NewGrid(shape, models.CellSize{DX: 1, DY: 1, DZ: 1}, make([]float64, shape.Cells()))
	for idx := range g.Values {
		g.Values[idx] = float64(idx % shape.NX)
	}

	cfg := DefaultConfig()
	cfg.Directions.Azimuth = 60
	set, az, err := cfg.DirectionSet(g)
	require.NoError(t, err)
	assert.Equal(t, 60.0, az)
	assert.Equal(t, estimation.Major, set[0].Name)

	cfg.Directions.AutoAzimuth = true
	_, az, err = cfg.DirectionSet(g)
	require.NoError(t, err)
	assert.InDelta(t, 0, az, 1e-9)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.Processing.Family, loaded.Processing.Family)
	assert.Equal(t, def.Fit, loaded.Fit)
	assert.Equal(t, def.Directions, loaded.Directions)
	assert.Equal(t, def.Output, loaded.Output)
}
