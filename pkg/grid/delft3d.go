package grid

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ctessum/cdf"

	"vargrest/internal/models"
)

var netcdfMagic = []byte{'C', 'D', 'F'}

// FillValue marks inactive cells in files written by WriteDelft3D
const FillValue = -999.0

// Delft3D reads NetCDF classic exports of Delft3D facies and property
// grids. Variables are laid out (z, y, x), optionally with a leading time
// dimension. Cell size, origin and rotation come from the global
// attributes dx, dy, dz, x0, y0, z0 and rotation.
type Delft3D struct{}

func (Delft3D) Name() string { return "delft3d" }

func (Delft3D) Detect(header []byte, path string) bool {
	if len(header) >= 4 && bytes.HasPrefix(header, netcdfMagic) && (header[3] == 1 || header[3] == 2) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return len(header) < 4 && (ext == ".nc" || ext == ".cdf")
}

func (Delft3D) Load(path string, opts LoadOptions) (*models.Grid, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("error reading NetCDF header of %s: %w", path, err)
	}

	name := opts.Variable
	if name == "" {
		name = firstGridVariable(f.Header, opts.ArchelVariable)
		if name == "" {
			return nil, fmt.Errorf("%w: no 3D variable in %s", ErrVariableNotFound, path)
		}
	}
	values, shape, err := readVariable(f, name, opts.Step)
	if err != nil {
		return nil, err
	}

	g := &models.Grid{
		Shape: shape,
		CellSize: models.CellSize{
			DX: attrFloat(f.Header, "", "dx", 1),
			DY: attrFloat(f.Header, "", "dy", 1),
			DZ: attrFloat(f.Header, "", "dz", 1),
		},
		Origin: models.Origin{
			X: attrFloat(f.Header, "", "x0", 0),
			Y: attrFloat(f.Header, "", "y0", 0),
			Z: attrFloat(f.Header, "", "z0", 0),
		},
		Rotation:    attrFloat(f.Header, "", "rotation", 0),
		Values:      values,
		Mask:        make([]bool, len(values)),
		Categorical: opts.Categorical || attrFloat(f.Header, name, "categorical", 0) != 0,
		Attribute:   name,
	}

	fill := attrFloat(f.Header, name, "_FillValue", math.NaN())
	for i, v := range values {
		g.Mask[i] = !math.IsNaN(v) && v != fill
	}

	if opts.ArchelVariable != "" && len(opts.ArchelCodes) > 0 {
		archel, ashape, err := readVariable(f, opts.ArchelVariable, opts.Step)
		if err != nil {
			return nil, err
		}
		if ashape != shape {
			return nil, fmt.Errorf("%w: %s is %dx%dx%d, %s is %dx%dx%d", models.ErrShapeMismatch,
				opts.ArchelVariable, ashape.NX, ashape.NY, ashape.NZ, name, shape.NX, shape.NY, shape.NZ)
		}
		for i, code := range archel {
			if !slices.Contains(opts.ArchelCodes, code) {
				g.Mask[i] = false
			}
		}
	}
	return g, nil
}

// firstGridVariable returns the first variable with three spatial
// dimensions, skipping the archel variable
func firstGridVariable(h *cdf.Header, skip string) string {
	for _, v := range h.Variables() {
		if v == skip {
			continue
		}
		switch dims := h.Lengths(v); len(dims) {
		case 3:
			return v
		case 4:
			if dims[0] <= 1 {
				return v
			}
		}
	}
	return ""
}

// readVariable reads a (z, y, x) variable, or record step of a
// (t, z, y, x) variable, as float64
func readVariable(f *cdf.File, name string, step int) ([]float64, models.Shape, error) {
	if !slices.Contains(f.Header.Variables(), name) {
		return nil, models.Shape{}, fmt.Errorf("%w: %q", ErrVariableNotFound, name)
	}
	dims := f.Header.Lengths(name)

	var begin, end []int
	switch len(dims) {
	case 3:
	case 4:
		nt := dims[0]
		if nt == 0 {
			nt = 1
		}
		if step < 0 || step >= nt {
			return nil, models.Shape{}, fmt.Errorf("step %d outside [0, %d) of %s", step, nt, name)
		}
		begin = []int{step, 0, 0, 0}
		end = []int{step + 1, dims[1], dims[2], dims[3]}
		dims = dims[1:]
	default:
		return nil, models.Shape{}, fmt.Errorf("variable %s has %d dimensions, want 3 (z, y, x)", name, len(dims))
	}

	shape := models.Shape{NX: dims[2], NY: dims[1], NZ: dims[0]}
	n := shape.Cells()
	buf := f.Header.ZeroValue(name, n)
	if buf == nil {
		return nil, models.Shape{}, fmt.Errorf("variable %s has an unsupported type", name)
	}
	read, err := f.Reader(name, begin, end).Read(buf)
	if err != nil {
		return nil, models.Shape{}, fmt.Errorf("error reading %s: %w", name, err)
	}
	if read != n {
		return nil, models.Shape{}, fmt.Errorf("read %d values of %s, want %d", read, name, n)
	}

	values, err := toFloat64(buf)
	if err != nil {
		return nil, models.Shape{}, fmt.Errorf("variable %s: %w", name, err)
	}
	return values, shape, nil
}

func toFloat64(data interface{}) ([]float64, error) {
	switch d := data.(type) {
	case []float64:
		return d, nil
	case []float32:
		return convert(d), nil
	case []int32:
		return convert(d), nil
	case []int16:
		return convert(d), nil
	case []int8:
		return convert(d), nil
	case []uint8:
		return convert(d), nil
	}
	return nil, fmt.Errorf("unsupported data type %T", data)
}

func convert[T float32 | int32 | int16 | int8 | uint8](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// attrFloat returns the first element of a numeric attribute, or def
func attrFloat(h *cdf.Header, v, name string, def float64) float64 {
	vals, err := toFloat64(h.GetAttribute(v, name))
	if err != nil || len(vals) == 0 {
		return def
	}
	return vals[0]
}

// Variable is an extra (z, y, x) array written next to the grid values
type Variable struct {
	Name   string
	Values []float64
}

// WriteDelft3D writes g as variable name of a NetCDF classic file that
// Delft3D.Load reads back. Inactive cells hold FillValue.
func WriteDelft3D(path string, g *models.Grid, name string, extra ...Variable) error {
	if err := g.Validate(); err != nil {
		return err
	}
	for _, e := range extra {
		if len(e.Values) != g.Shape.Cells() {
			return fmt.Errorf("%w: variable %s has %d values for %d cells",
				models.ErrShapeMismatch, e.Name, len(e.Values), g.Shape.Cells())
		}
	}

	dims := []string{"z", "y", "x"}
	h := cdf.NewHeader(dims, []int{g.Shape.NZ, g.Shape.NY, g.Shape.NX})
	h.AddAttribute("", "comment", "vargrest grid export")
	h.AddAttribute("", "dx", []float64{g.CellSize.DX})
	h.AddAttribute("", "dy", []float64{g.CellSize.DY})
	h.AddAttribute("", "dz", []float64{g.CellSize.DZ})
	h.AddAttribute("", "x0", []float64{g.Origin.X})
	h.AddAttribute("", "y0", []float64{g.Origin.Y})
	h.AddAttribute("", "z0", []float64{g.Origin.Z})
	h.AddAttribute("", "rotation", []float64{g.Rotation})

	h.AddVariable(name, dims, []float64{0})
	h.AddAttribute(name, "_FillValue", []float64{FillValue})
	if g.Categorical {
		h.AddAttribute(name, "categorical", []int32{1})
	}
	for _, e := range extra {
		h.AddVariable(e.Name, dims, []float64{0})
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("error writing NetCDF header: %w", err)
	}

	data := make([]float64, len(g.Values))
	for i, v := range g.Values {
		if g.Mask[i] && !math.IsNaN(v) {
			data[i] = v
		} else {
			data[i] = FillValue
		}
	}
	if err := writeVariable(f, name, data); err != nil {
		return err
	}
	for _, e := range extra {
		if err := writeVariable(f, e.Name, e.Values); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("error finalizing %s: %w", path, err)
	}
	return nil
}

func writeVariable(f *cdf.File, name string, data []float64) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data); err != nil {
		return fmt.Errorf("error writing variable %s: %w", name, err)
	}
	return nil
}
