// Package report writes estimation reports as JSON, YAML and a fixed-width
// summary table.
package report

import (
	"math"
	"time"

	"vargrest/pkg/estimation"
	"vargrest/pkg/variogram"
)

// Document is the serialized form of an estimation.Report. Floats that
// may be NaN are pointers so they encode as null.
type Document struct {
	ID         string `json:"id" yaml:"id"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Family     string `json:"family" yaml:"family"`
	CreatedAt  string `json:"createdAt" yaml:"createdAt"`

	Grid       GridDocument        `json:"grid" yaml:"grid"`
	Subset     SubsetDocument      `json:"subset" yaml:"subset"`
	Directions []DirectionDocument `json:"directions" yaml:"directions"`
	Quality    QualityDocument     `json:"quality" yaml:"quality"`

	Ellipsoid      *EllipsoidDocument `json:"ellipsoid,omitempty" yaml:"ellipsoid,omitempty"`
	EllipsoidError string             `json:"ellipsoidError,omitempty" yaml:"ellipsoidError,omitempty"`

	Summary SummaryDocument `json:"summary" yaml:"summary"`
}

type GridDocument struct {
	Shape       [3]int     `json:"shape" yaml:"shape,flow"`
	CellSize    [3]float64 `json:"cellSize" yaml:"cellSize,flow"`
	Attribute   string     `json:"attribute" yaml:"attribute"`
	Categorical bool       `json:"categorical" yaml:"categorical"`
	ActiveCells int        `json:"activeCells" yaml:"activeCells"`
	Variance    *float64   `json:"variance" yaml:"variance"`
}

type SubsetDocument struct {
	Indicator    *float64  `json:"indicator,omitempty" yaml:"indicator,omitempty"`
	Box          []int     `json:"box,omitempty" yaml:"box,omitempty,flow"`
	ArchelFilter []float64 `json:"archelFilter,omitempty" yaml:"archelFilter,omitempty,flow"`
}

type DirectionDocument struct {
	Name      string     `json:"name" yaml:"name"`
	Vector    [3]float64 `json:"vector" yaml:"vector,flow"`
	Tolerance float64    `json:"tolerance" yaml:"tolerance"`
	BinWidth  float64    `json:"binWidth,omitempty" yaml:"binWidth,omitempty"`
	MaxLag    float64    `json:"maxLag,omitempty" yaml:"maxLag,omitempty"`
	Stage     string     `json:"stage" yaml:"stage"`
	Failed    bool       `json:"failed" yaml:"failed"`
	Reason    string     `json:"reason,omitempty" yaml:"reason,omitempty"`

	Model      *variogram.Model `json:"model,omitempty" yaml:"model,omitempty"`
	BestEffort *variogram.Model `json:"bestEffort,omitempty" yaml:"bestEffort,omitempty"`
	Converged  bool             `json:"converged" yaml:"converged"`
	Iterations int              `json:"iterations" yaml:"iterations"`

	Quality QualityDocument `json:"quality" yaml:"quality"`
	Points  []PointDocument `json:"points" yaml:"points"`
}

type PointDocument struct {
	Lag          *float64 `json:"lag" yaml:"lag"`
	Semivariance *float64 `json:"semivariance" yaml:"semivariance"`
	Pairs        int      `json:"pairs" yaml:"pairs"`
	Lo           float64  `json:"lo" yaml:"lo"`
	Hi           float64  `json:"hi" yaml:"hi"`
}

type QualityDocument struct {
	Full *float64 `json:"full" yaml:"full"`
	X    *float64 `json:"x" yaml:"x"`
	Y    *float64 `json:"y" yaml:"y"`
	Z    *float64 `json:"z" yaml:"z"`
}

type EllipsoidDocument struct {
	Major         [3]float64 `json:"major" yaml:"major,flow"`
	Minor         [3]float64 `json:"minor" yaml:"minor,flow"`
	Vertical      [3]float64 `json:"vertical" yaml:"vertical,flow"`
	RangeMajor    float64    `json:"rangeMajor" yaml:"rangeMajor"`
	RangeMinor    float64    `json:"rangeMinor" yaml:"rangeMinor"`
	RangeVertical float64    `json:"rangeVertical" yaml:"rangeVertical"`
	Azimuth       float64    `json:"azimuth" yaml:"azimuth"`
	Dip           float64    `json:"dip" yaml:"dip"`
	Rake          float64    `json:"rake" yaml:"rake"`
}

// SummaryDocument uses the column names of the summary table
type SummaryDocument struct {
	Identifier   string   `json:"identifier" yaml:"identifier"`
	Family       string   `json:"family" yaml:"family"`
	ArchelFilter string   `json:"archel_filter" yaml:"archel_filter"`
	Indicator    string   `json:"indicator" yaml:"indicator"`
	Box          string   `json:"box" yaml:"box"`
	Attribute    string   `json:"attribute" yaml:"attribute"`
	Quality      *float64 `json:"quality[<1.0]" yaml:"quality[<1.0]"`
	RMajor       *float64 `json:"r_major[m]" yaml:"r_major[m]"`
	RMinor       *float64 `json:"r_minor[m]" yaml:"r_minor[m]"`
	Azimuth      *float64 `json:"azimuth[deg]" yaml:"azimuth[deg]"`
	RVertical    *float64 `json:"r_vertical[m]" yaml:"r_vertical[m]"`
	Sigma        *float64 `json:"sigma[N/A]" yaml:"sigma[N/A]"`
	QualityX     *float64 `json:"quality_x[<1.0]" yaml:"quality_x[<1.0]"`
	QualityY     *float64 `json:"quality_y[<1.0]" yaml:"quality_y[<1.0]"`
	QualityZ     *float64 `json:"quality_z[<1.0]" yaml:"quality_z[<1.0]"`
}

// NewDocument converts r for serialization
func NewDocument(r *estimation.Report) Document {
	doc := Document{
		ID:         r.ID,
		Identifier: r.Identifier,
		Family:     r.Family.String(),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		Grid: GridDocument{
			Shape:       [3]int{r.Grid.Shape.NX, r.Grid.Shape.NY, r.Grid.Shape.NZ},
			CellSize:    [3]float64{r.Grid.CellSize.DX, r.Grid.CellSize.DY, r.Grid.CellSize.DZ},
			Attribute:   r.Grid.Attribute,
			Categorical: r.Grid.Categorical,
			ActiveCells: r.Grid.ActiveCells,
			Variance:    nullable(r.Grid.Variance),
		},
		Subset: SubsetDocument{
			Indicator:    r.Subset.Indicator,
			Box:          r.Subset.Box,
			ArchelFilter: r.Subset.ArchelFilter,
		},
		Quality:        qualityDocument(r.Quality),
		EllipsoidError: r.EllipsoidError,
		Summary:        summaryDocument(r.Summary()),
	}

	for _, d := range r.Directions {
		dd := DirectionDocument{
			Name:       d.Name,
			Vector:     [3]float64{d.Direction.Vector.X, d.Direction.Vector.Y, d.Direction.Vector.Z},
			Tolerance:  d.Direction.Tolerance,
			BinWidth:   d.Lag.BinWidth,
			MaxLag:     d.Lag.MaxLag,
			Stage:      d.Stage.String(),
			Failed:     d.Failed,
			Reason:     d.Reason,
			Model:      d.Model,
			BestEffort: d.BestEffort,
			Converged:  d.Converged,
			Iterations: d.Iterations,
			Quality:    qualityDocument(d.Quality),
			Points:     make([]PointDocument, len(d.Points)),
		}
		for i, p := range d.Points {
			dd.Points[i] = PointDocument{
				Lag:          nullable(p.Lag),
				Semivariance: nullable(p.Semivariance),
				Pairs:        p.PairCount,
				Lo:           p.Lo,
				Hi:           p.Hi,
			}
		}
		doc.Directions = append(doc.Directions, dd)
	}

	if e := r.Ellipsoid; e != nil {
		doc.Ellipsoid = &EllipsoidDocument{
			Major:         [3]float64{e.Major.X, e.Major.Y, e.Major.Z},
			Minor:         [3]float64{e.Minor.X, e.Minor.Y, e.Minor.Z},
			Vertical:      [3]float64{e.Vertical.X, e.Vertical.Y, e.Vertical.Z},
			RangeMajor:    e.RangeMajor,
			RangeMinor:    e.RangeMinor,
			RangeVertical: e.RangeVertical,
			Azimuth:       e.Azimuth,
			Dip:           e.Dip,
			Rake:          e.Rake,
		}
	}
	return doc
}

func qualityDocument(q variogram.QualityFactor) QualityDocument {
	return QualityDocument{
		Full: score(q.Full),
		X:    score(q.X),
		Y:    score(q.Y),
		Z:    score(q.Z),
	}
}

func summaryDocument(s estimation.Summary) SummaryDocument {
	return SummaryDocument{
		Identifier:   s.Identifier,
		Family:       s.Family,
		ArchelFilter: s.ArchelFilter,
		Indicator:    s.Indicator,
		Box:          s.Box,
		Attribute:    s.Attribute,
		Quality:      nullable(s.Quality),
		RMajor:       nullable(s.RMajor),
		RMinor:       nullable(s.RMinor),
		Azimuth:      nullable(s.Azimuth),
		RVertical:    nullable(s.RVertical),
		Sigma:        nullable(s.Sigma),
		QualityX:     nullable(s.QualityX),
		QualityY:     nullable(s.QualityY),
		QualityZ:     nullable(s.QualityZ),
	}
}

func score(s variogram.Score) *float64 {
	if !s.Sufficient {
		return nil
	}
	return nullable(s.Value)
}

// nullable maps NaN and infinities to nil
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
