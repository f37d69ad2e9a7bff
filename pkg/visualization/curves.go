package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"vargrest/pkg/estimation"
	"vargrest/pkg/variogram"
)

// ErrNothingToPlot is returned when no direction has a defined point
var ErrNothingToPlot = errors.New("visualization: no experimental points to plot")

// Curves draws the experimental points of every direction as a scatter
// and the fitted model as a line in the same color. The grid variance is
// drawn as a dashed reference. The image format follows the extension of
// path.
func Curves(r *estimation.Report, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s variograms", title(r))
	p.X.Label.Text = "Lag (m)"
	p.Y.Label.Text = "Semivariance"
	p.X.Min = 0
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	colors := generateColors(len(r.Directions))
	maxLag, maxGamma := 0.0, 0.0
	plotted := 0

	for i, d := range r.Directions {
		pts := variogram.DefinedPoints(d.Points)
		if len(pts) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(pts))
		for k, pt := range pts {
			xys[k] = plotter.XY{X: pt.Lag, Y: pt.Semivariance}
			maxGamma = math.Max(maxGamma, pt.Semivariance)
		}
		maxLag = math.Max(maxLag, pts[len(pts)-1].Hi)

		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = colors[i]
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)

		label := d.Name
		if d.Failed {
			label += " (failed)"
			p.Legend.Add(label, scatter)
			plotted++
			continue
		}

		m := *d.Model
		fn := plotter.NewFunction(m.Evaluate)
		fn.Color = colors[i]
		fn.Width = vg.Points(1.5)
		fn.Samples = 200
		p.Add(fn)
		p.Legend.Add(fmt.Sprintf("%s %s", label, m), scatter, fn)
		maxGamma = math.Max(maxGamma, m.Total())
		plotted++
	}
	if plotted == 0 {
		return ErrNothingToPlot
	}

	if v := r.Grid.Variance; v > 0 && !math.IsNaN(v) {
		ref, err := plotter.NewLine(plotter.XYs{{X: 0, Y: v}, {X: maxLag, Y: v}})
		if err != nil {
			return err
		}
		ref.Color = color.Gray{Y: 96}
		ref.Width = vg.Points(1)
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(ref)
		p.Legend.Add("variance", ref)
		maxGamma = math.Max(maxGamma, v)
	}

	p.X.Max = maxLag
	p.Y.Max = 1.1 * maxGamma
	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save variogram plot: %w", err)
	}
	return nil
}

func title(r *estimation.Report) string {
	name := r.Identifier
	if name == "" {
		name = r.Grid.Attribute
	}
	if r.Subset.Indicator != nil {
		name += fmt.Sprintf(" (indicator %g)", *r.Subset.Indicator)
	}
	return name
}

// generateColors returns one color per direction from the plotutil
// palette, cycling when there are more directions than colors
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = plotutil.Color(i)
	}
	return colors
}
