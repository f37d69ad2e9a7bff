package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"vargrest/internal/models"
	"vargrest/pkg/config"
	"vargrest/pkg/estimation"
	"vargrest/pkg/grid"
	"vargrest/pkg/logging"
	"vargrest/pkg/report"
	"vargrest/pkg/visualization"
)

// errUsage is returned for missing or contradictory arguments
var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, errUsage):
			os.Exit(2)
		}
		logging.Error().Err(err).Msg("estimation failed")
		os.Exit(1)
	}
}

// options holds the command line. Flags left at their zero value do not
// override the configuration file.
type options struct {
	input              string
	configPath         string
	writeDefaultConfig string
	identifier         string
	variable           string
	categorical        bool
	family             string
	outputDir          string
	formats            []string
	plot               bool
	indicators         []float64
	box                []int
	archelVariable     string
	archelCodes        []float64
	autoAzimuth        bool
	azimuth            float64
	workers            int
	logLevel           string
}

func parseFlags(args []string) (*options, *flag.FlagSet, error) {
	o := &options{}
	fs := flag.NewFlagSet("vargrest", flag.ContinueOnError)
	fs.StringVarP(&o.input, "input", "i", "", "Grid file (NetCDF)")
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&o.writeDefaultConfig, "write-default-config", "", "Write the default configuration to this path and exit")
	fs.StringVar(&o.identifier, "identifier", "", "Run name used in reports (default: input file name)")
	fs.StringVarP(&o.variable, "variable", "v", "", "Variable to read (default: first 3D variable)")
	fs.BoolVar(&o.categorical, "categorical", false, "Treat the values as facies codes")
	fs.StringVarP(&o.family, "family", "f", "", "Model family: spherical, exponential, gaussian, general_exponential")
	fs.StringVarP(&o.outputDir, "output-dir", "o", "", "Directory for reports and plots")
	fs.StringSliceVar(&o.formats, "format", nil, "Report formats: json, yaml, csv")
	fs.BoolVar(&o.plot, "plot", false, "Write variogram plots and grid slices")
	fs.Float64SliceVar(&o.indicators, "indicator", nil, "Facies codes to estimate as 0/1 indicators")
	fs.IntSliceVar(&o.box, "box", nil, "Sub-grid i0,i1,j0,j1,k0,k1 (end exclusive)")
	fs.StringVar(&o.archelVariable, "archel-variable", "", "Variable holding architectural element codes")
	fs.Float64SliceVar(&o.archelCodes, "archel", nil, "Architectural element codes to keep")
	fs.BoolVar(&o.autoAzimuth, "auto-azimuth", false, "Search the azimuth of greatest continuity")
	fs.Float64Var(&o.azimuth, "azimuth", 0, "Azimuth of the major direction in degrees")
	fs.IntVarP(&o.workers, "workers", "w", 0, "Directions computed concurrently (default: from config)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return o, fs, nil
}

// apply overrides cfg with the flags given on the command line
func (o *options) apply(cfg *config.Config, fs *flag.FlagSet) {
	if fs.Changed("variable") {
		cfg.Input.Variable = o.variable
	}
	if fs.Changed("categorical") {
		cfg.Input.Categorical = o.categorical
	}
	if fs.Changed("family") {
		cfg.Processing.Family = o.family
	}
	if fs.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if fs.Changed("format") {
		cfg.Output.Formats = o.formats
	}
	if fs.Changed("plot") {
		cfg.Output.Plot = o.plot
	}
	if fs.Changed("indicator") {
		cfg.Processing.Indicators = o.indicators
		cfg.Input.Categorical = true
	}
	if fs.Changed("box") {
		cfg.Processing.Box = o.box
	}
	if fs.Changed("archel-variable") {
		cfg.Input.ArchelVariable = o.archelVariable
	}
	if fs.Changed("archel") {
		cfg.Input.ArchelCodes = o.archelCodes
	}
	if fs.Changed("auto-azimuth") {
		cfg.Directions.AutoAzimuth = o.autoAzimuth
	}
	if fs.Changed("azimuth") {
		cfg.Directions.Azimuth = o.azimuth
	}
	if fs.Changed("workers") {
		cfg.Processing.Workers = o.workers
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
}

func run(args []string, stdout io.Writer) error {
	o, fs, err := parseFlags(args)
	if err != nil {
		return err
	}

	if o.writeDefaultConfig != "" {
		if err := config.CreateDefaultConfigFile(o.writeDefaultConfig); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", o.writeDefaultConfig)
		return nil
	}
	if o.input == "" {
		fmt.Fprintln(os.Stderr, "vargrest: --input is required")
		fs.PrintDefaults()
		return errUsage
	}

	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Init(cfg.Logging)

	identifier := o.identifier
	if identifier == "" {
		identifier = strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))
	}

	logging.Info().Str("input", o.input).Str("family", cfg.Processing.Family).Msg("loading grid")
	g, err := grid.Load(o.input, grid.LoadOptions{
		Variable:       cfg.Input.Variable,
		Categorical:    cfg.Input.Categorical,
		ArchelVariable: cfg.Input.ArchelVariable,
		ArchelCodes:    cfg.Input.ArchelCodes,
	})
	if err != nil {
		return err
	}
	logging.Info().
		Str("attribute", g.Attribute).
		Int("nx", g.Shape.NX).Int("ny", g.Shape.NY).Int("nz", g.Shape.NZ).
		Int("active", g.ActiveCount()).
		Msg("grid loaded")

	// one estimate per indicator, or a single estimate of the raw values
	indicators := []*float64{nil}
	if len(cfg.Processing.Indicators) > 0 {
		indicators = indicators[:0]
		for _, code := range cfg.Processing.Indicators {
			indicators = append(indicators, &code)
		}
	}

	start := time.Now()
	var summaries []estimation.Summary
	for _, ind := range indicators {
		name := identifier
		if ind != nil {
			name = fmt.Sprintf("%s_ind%g", identifier, *ind)
		}
		r, err := estimate(g, cfg, name, ind)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		summaries = append(summaries, r.Summary())
	}

	if len(summaries) > 1 {
		path := filepath.Join(cfg.Output.Dir, identifier+"_summary.csv")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.WriteSummaryCSV(f, summaries); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "\nEstimation completed in %.2f seconds\n\n", time.Since(start).Seconds())
	return report.WriteSummaryCSV(stdout, summaries)
}

// estimate runs one subset of g and writes its outputs
func estimate(g *models.Grid, cfg *config.Config, name string, indicator *float64) (*estimation.Report, error) {
	runCfg, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}
	runCfg.Identifier = name
	runCfg.Subset.Indicator = indicator

	sub, err := runCfg.Subset.Apply(g)
	if err != nil {
		return nil, err
	}
	set, azimuth, err := cfg.DirectionSet(sub)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("run", name).Float64("azimuth", azimuth).Msg("estimating variograms")

	r, err := estimation.Run(sub, set, runCfg)
	if err != nil {
		return nil, err
	}
	if n := r.FailedCount(); n > 0 {
		logging.Warn().Str("run", name).Int("failed", n).Msg("some directions could not be estimated")
	}

	files, err := report.Save(cfg.Output.Dir, r, cfg.Output.Formats)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		logging.Debug().Str("file", f).Msg("report written")
	}

	if cfg.Output.Plot {
		curves := filepath.Join(cfg.Output.Dir, name+"_variograms.png")
		if err := visualization.Curves(r, curves); err != nil {
			logging.Warn().Err(err).Str("run", name).Msg("variogram plot skipped")
		}
		if _, err := visualization.NewViewer(sub).SaveCenterSlices(cfg.Output.Dir, name); err != nil {
			logging.Warn().Err(err).Str("run", name).Msg("grid slices skipped")
		}
	}
	return r, nil
}
