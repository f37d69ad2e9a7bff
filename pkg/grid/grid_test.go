package grid

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vargrest/internal/models"
)

func testGrid() *models.Grid {
	shape := models.Shape{NX: 4, NY: 3, NZ: 2}
	values := make([]float64, shape.Cells())
	for i := range values {
		values[i] = float64(i % 3)
	}
	g := models.NewGrid(shape, models.CellSize{DX: 25, DY: 50, DZ: 0.5}, values)
	g.Origin = models.Origin{X: 1000, Y: 2000, Z: -10}
	g.Rotation = 30
	g.Categorical = true
	g.Mask[5] = false
	return g
}

func TestDelft3DRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facies.nc")
	want := testGrid()
	require.NoError(t, WriteDelft3D(path, want, "facies"))

	got, err := Load(path, LoadOptions{Variable: "facies"})
	require.NoError(t, err)

	assert.Equal(t, want.Shape, got.Shape)
	assert.Equal(t, want.CellSize, got.CellSize)
	assert.Equal(t, want.Origin, got.Origin)
	assert.Equal(t, want.Rotation, got.Rotation)
	assert.True(t, got.Categorical)
	assert.Equal(t, "facies", got.Attribute)
	assert.Equal(t, want.Mask, got.Mask)
	for i, v := range want.Values {
		if want.Mask[i] {
			assert.Equal(t, v, got.Values[i], "cell %d", i)
		}
	}
}

func TestDelft3DFirstVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	g := testGrid()
	archel := make([]float64, g.Shape.Cells())
	require.NoError(t, WriteDelft3D(path, g, "porosity", Variable{Name: "archel", Values: archel}))

	got, err := Load(path, LoadOptions{ArchelVariable: "archel"})
	require.NoError(t, err)
	assert.Equal(t, "porosity", got.Attribute)
	assert.False(t, got.Categorical)
}

func TestDelft3DArchelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	g := testGrid()
	archel := make([]float64, g.Shape.Cells())
	for i := range archel {
		archel[i] = float64(i % 2)
	}
	require.NoError(t, WriteDelft3D(path, g, "facies", Variable{Name: "archel", Values: archel}))

	got, err := Load(path, LoadOptions{
		Variable:       "facies",
		ArchelVariable: "archel",
		ArchelCodes:    []float64{1},
	})
	require.NoError(t, err)
	for i := range got.Mask {
		assert.Equal(t, g.Mask[i] && i%2 == 1, got.Mask[i], "cell %d", i)
	}
}

func TestDelft3DMissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, WriteDelft3D(path, testGrid(), "facies"))

	_, err := Load(path, LoadOptions{Variable: "porosity"})
	assert.ErrorIs(t, err, ErrVariableNotFound)
}

func TestWriteDelft3DRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()
	err := WriteDelft3D(filepath.Join(dir, "a.nc"), g, "facies", Variable{Name: "archel", Values: []float64{1}})
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	g.Values = g.Values[:3]
	err = WriteDelft3D(filepath.Join(dir, "b.nc"), g, "facies")
	assert.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestWriteDelft3DNaNIsInactive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	g := testGrid()
	g.Values[0] = math.NaN()
	require.NoError(t, WriteDelft3D(path, g, "facies"))

	got, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.False(t, got.Mask[0])
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"netcdf classic", write("a.bin", []byte("CDF\x01\x00\x00\x00\x00")), "delft3d"},
		{"netcdf 64-bit offset", write("b.bin", []byte("CDF\x02\x00\x00\x00\x00")), "delft3d"},
		{"hdf5", write("c.bin", hdf5Magic), "resqml"},
		{"epc package", write("d.epc", append(zipMagic, 0, 0, 0, 0)), "resqml"},
		{"empty nc", write("e.nc", nil), "delft3d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Detect(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Name())
		})
	}

	_, err := Detect(write("f.txt", []byte("hello world")))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Detect(filepath.Join(dir, "missing.nc"))
	assert.Error(t, err)
}

func TestRESQMLUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.h5")
	require.NoError(t, os.WriteFile(path, hdf5Magic, 0o644))

	_, err := Load(path, LoadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
