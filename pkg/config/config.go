// Package config provides configuration loading and management for vargrest.
// Values are layered: built-in defaults, then an optional YAML file, then
// VARGREST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"vargrest/internal/models"
	"vargrest/pkg/estimation"
	"vargrest/pkg/logging"
	"vargrest/pkg/variogram"
)

// EnvPrefix prefixes every environment override, e.g.
// VARGREST_FIT_MAX_ITERATIONS=200 sets fit.maxIterations
const EnvPrefix = "VARGREST_"

// Config represents the application configuration
type Config struct {
	Processing ProcessingConfig `koanf:"processing" yaml:"processing"`
	Input      InputConfig      `koanf:"input" yaml:"input"`
	Lag        LagConfig        `koanf:"lag" yaml:"lag"`
	Fit        FitConfig        `koanf:"fit" yaml:"fit"`
	Quality    QualityConfig    `koanf:"quality" yaml:"quality"`
	Directions DirectionsConfig `koanf:"directions" yaml:"directions"`
	Output     OutputConfig     `koanf:"output" yaml:"output"`
	Logging    logging.Config   `koanf:"logging" yaml:"logging"`
}

// ProcessingConfig selects what is estimated
type ProcessingConfig struct {
	// Workers is the number of directions computed concurrently
	Workers int `koanf:"workers" yaml:"workers" validate:"gte=0"`

	// Family is the theoretical model fitted to every direction
	Family string `koanf:"family" yaml:"family" validate:"required"`

	// Indicators lists facies codes; each produces its own 0/1 estimate
	Indicators []float64 `koanf:"indicators" yaml:"indicators"`

	// Box restricts the grid to [i0, i1, j0, j1, k0, k1)
	Box []int `koanf:"box" yaml:"box" validate:"omitempty,len=6,dive,gte=0"`
}

// InputConfig tells the grid adapters what to read
type InputConfig struct {
	// Variable is the property to read; empty picks the first 3D variable
	Variable string `koanf:"variable" yaml:"variable"`

	// Categorical marks facies codes
	Categorical bool `koanf:"categorical" yaml:"categorical"`

	// ArchelVariable and ArchelCodes keep only cells of the given
	// architectural elements
	ArchelVariable string    `koanf:"archelVariable" yaml:"archelVariable"`
	ArchelCodes    []float64 `koanf:"archelCodes" yaml:"archelCodes"`
}

// LagConfig holds the horizontal and vertical binning. Zero values are
// derived from the grid.
type LagConfig struct {
	BinWidth         float64 `koanf:"binWidth" yaml:"binWidth" validate:"gte=0"`
	MaxLag           float64 `koanf:"maxLag" yaml:"maxLag" validate:"gte=0"`
	VerticalBinWidth float64 `koanf:"verticalBinWidth" yaml:"verticalBinWidth" validate:"gte=0"`
	VerticalMaxLag   float64 `koanf:"verticalMaxLag" yaml:"verticalMaxLag" validate:"gte=0"`
}

// FitConfig controls the model fitter
type FitConfig struct {
	Method           string  `koanf:"method" yaml:"method"`
	MaxIterations    int     `koanf:"maxIterations" yaml:"maxIterations" validate:"gte=1"`
	Tolerance        float64 `koanf:"tolerance" yaml:"tolerance" validate:"gt=0"`
	NuggetBelowSill  bool    `koanf:"nuggetBelowSill" yaml:"nuggetBelowSill"`
	RangeFraction    float64 `koanf:"rangeFraction" yaml:"rangeFraction" validate:"gt=0,lte=1"`
	Power            float64 `koanf:"power" yaml:"power" validate:"gt=0,lte=2"`
	AcceptBestEffort bool    `koanf:"acceptBestEffort" yaml:"acceptBestEffort"`
}

// QualityConfig controls the quality scorer
type QualityConfig struct {
	Baseline  string `koanf:"baseline" yaml:"baseline"`
	MinPoints int    `koanf:"minPoints" yaml:"minPoints" validate:"gte=2"`
}

// DirectionsConfig defines the major, minor and vertical directions
type DirectionsConfig struct {
	// Azimuth of the major direction in degrees clockwise from grid north
	Azimuth float64 `koanf:"azimuth" yaml:"azimuth" validate:"gte=0,lt=360"`

	// AutoAzimuth replaces Azimuth by the direction of greatest continuity
	AutoAzimuth  bool `koanf:"autoAzimuth" yaml:"autoAzimuth"`
	AzimuthSteps int  `koanf:"azimuthSteps" yaml:"azimuthSteps" validate:"gte=0"`

	HorizontalTolerance float64 `koanf:"horizontalTolerance" yaml:"horizontalTolerance" validate:"gte=0,lte=90"`
	VerticalTolerance   float64 `koanf:"verticalTolerance" yaml:"verticalTolerance" validate:"gte=0,lte=90"`
}

// OutputConfig controls what is written
type OutputConfig struct {
	Dir     string   `koanf:"dir" yaml:"dir" validate:"required"`
	Formats []string `koanf:"formats" yaml:"formats" validate:"dive,oneof=json yaml csv"`
	Plot    bool     `koanf:"plot" yaml:"plot"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Family = variogram.Spherical.String()

	fit := variogram.DefaultFitConfig()
	cfg.Fit.Method = fit.Method.String()
	cfg.Fit.MaxIterations = fit.MaxIterations
	cfg.Fit.Tolerance = fit.Tolerance
	cfg.Fit.RangeFraction = fit.RangeFraction
	cfg.Fit.Power = fit.Power

	quality := variogram.DefaultQualityConfig()
	cfg.Quality.Baseline = quality.Baseline.String()
	cfg.Quality.MinPoints = quality.MinPoints

	cfg.Directions.AzimuthSteps = variogram.DefaultDominantConfig().Steps
	cfg.Directions.HorizontalTolerance = 22.5
	cfg.Directions.VerticalTolerance = 10

	cfg.Output.Dir = "output"
	cfg.Output.Formats = []string{"json", "csv"}

	cfg.Logging = logging.DefaultConfig()
	return cfg
}

// LoadConfig layers defaults, the YAML file at configPath (skipped when
// empty or missing) and the environment
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}
	if err := splitListFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.Logging.Output = os.Stderr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var sections = map[string]bool{
	"processing": true,
	"input":      true,
	"lag":        true,
	"fit":        true,
	"quality":    true,
	"directions": true,
	"output":     true,
	"logging":    true,
}

// envTransformFunc maps VARGREST_FIT_MAX_ITERATIONS to fit.maxIterations.
// Unknown sections are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || !sections[section] || rest == "" {
		return ""
	}
	words := strings.Split(rest, "_")
	for i := 1; i < len(words); i++ {
		if words[i] != "" {
			words[i] = strings.ToUpper(words[i][:1]) + words[i][1:]
		}
	}
	return section + "." + strings.Join(words, "")
}

var listFields = []string{"processing.indicators", "processing.box", "input.archelCodes", "output.formats"}

// splitListFields turns comma separated environment values into lists
func splitListFields(k *koanf.Koanf) error {
	for _, key := range listFields {
		v, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("error splitting %s: %w", key, err)
		}
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks field ranges and the names of family, method and baseline
func (c *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := variogram.ParseFamily(c.Processing.Family); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := variogram.ParseMethod(c.Fit.Method); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := variogram.ParseBaseline(c.Quality.Baseline); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RunConfig converts the configuration into the orchestrator's settings
func (c *Config) RunConfig() (estimation.RunConfig, error) {
	family, err := variogram.ParseFamily(c.Processing.Family)
	if err != nil {
		return estimation.RunConfig{}, err
	}
	method, err := variogram.ParseMethod(c.Fit.Method)
	if err != nil {
		return estimation.RunConfig{}, err
	}
	baseline, err := variogram.ParseBaseline(c.Quality.Baseline)
	if err != nil {
		return estimation.RunConfig{}, err
	}

	return estimation.RunConfig{
		Family:      family,
		Lag:         variogram.LagConfig{BinWidth: c.Lag.BinWidth, MaxLag: c.Lag.MaxLag},
		VerticalLag: variogram.LagConfig{BinWidth: c.Lag.VerticalBinWidth, MaxLag: c.Lag.VerticalMaxLag},
		Fit: variogram.FitConfig{
			MaxIterations:   c.Fit.MaxIterations,
			Tolerance:       c.Fit.Tolerance,
			NuggetBelowSill: c.Fit.NuggetBelowSill,
			RangeFraction:   c.Fit.RangeFraction,
			Method:          method,
			Power:           c.Fit.Power,
		},
		Quality: variogram.QualityConfig{
			Baseline:  baseline,
			MinPoints: c.Quality.MinPoints,
		},
		AcceptBestEffort: c.Fit.AcceptBestEffort,
		Workers:          c.Processing.Workers,
		Subset: estimation.Subset{
			Box:          c.Processing.Box,
			ArchelFilter: c.Input.ArchelCodes,
		},
	}, nil
}

// DirectionSet builds the major, minor and vertical directions for g,
// searching the dominant azimuth when configured to. It returns the azimuth
// used for the major direction.
func (c *Config) DirectionSet(g *models.Grid) (estimation.DirectionSet, float64, error) {
	d := c.Directions
	if d.AutoAzimuth {
		dom := variogram.DefaultDominantConfig()
		if d.AzimuthSteps > 0 {
			dom.Steps = d.AzimuthSteps
		}
		return estimation.AutoDirectionSet(g, d.HorizontalTolerance, d.VerticalTolerance, dom)
	}
	set, err := estimation.DefaultDirectionSet(d.Azimuth, d.HorizontalTolerance, d.VerticalTolerance)
	return set, d.Azimuth, err
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
