// Package visualization renders quality-control images of an estimation:
// grid slices and experimental versus fitted variogram curves.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"vargrest/internal/models"
)

// Viewer extracts axis aligned slices from a grid
type Viewer struct {
	grid *models.Grid

	// lo and hi are the value range of the active cells, mapped to the
	// gray scale
	lo, hi float64
}

// NewViewer creates a viewer for g
func NewViewer(g *models.Grid) *Viewer {
	active := g.ActiveValues()
	if len(active) == 0 {
		return &Viewer{grid: g}
	}
	return &Viewer{grid: g, lo: floats.Min(active), hi: floats.Max(active)}
}

// shade maps a cell to the gray scale. Inactive cells are black, active
// cells span 1..65535 so they stay distinguishable from inactive ones.
func (v *Viewer) shade(idx int) color.Gray16 {
	if !v.grid.Mask[idx] || math.IsNaN(v.grid.Values[idx]) {
		return color.Gray16{}
	}
	t := 1.0
	if v.hi > v.lo {
		t = (v.grid.Values[idx] - v.lo) / (v.hi - v.lo)
	}
	return color.Gray16{Y: uint16(1 + t*65534)}
}

// ExtractSlice returns the slice at position along axis x, y or z.
// Rows of x and y slices run along z from the top layer down.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	s := v.grid.Shape

	var img *image.Gray16
	switch axis {
	case "x", "X":
		if position >= s.NX {
			return nil, fmt.Errorf("position %d exceeds NX %d", position, s.NX)
		}
		img = image.NewGray16(image.Rect(0, 0, s.NY, s.NZ))
		for k := 0; k < s.NZ; k++ {
			for j := 0; j < s.NY; j++ {
				img.SetGray16(j, s.NZ-1-k, v.shade(v.grid.Index(position, j, k)))
			}
		}

	case "y", "Y":
		if position >= s.NY {
			return nil, fmt.Errorf("position %d exceeds NY %d", position, s.NY)
		}
		img = image.NewGray16(image.Rect(0, 0, s.NX, s.NZ))
		for k := 0; k < s.NZ; k++ {
			for i := 0; i < s.NX; i++ {
				img.SetGray16(i, s.NZ-1-k, v.shade(v.grid.Index(i, position, k)))
			}
		}

	case "z", "Z":
		if position >= s.NZ {
			return nil, fmt.Errorf("position %d exceeds NZ %d", position, s.NZ)
		}
		// north up
		img = image.NewGray16(image.Rect(0, 0, s.NX, s.NY))
		for j := 0; j < s.NY; j++ {
			for i := 0; i < s.NX; i++ {
				img.SetGray16(i, s.NY-1-j, v.shade(v.grid.Index(i, j, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveCenterSlices writes the middle slice along each axis to
// <prefix>_slice_<axis>.png in outputDir and returns the file names
func (v *Viewer) SaveCenterSlices(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	s := v.grid.Shape
	centers := []struct {
		axis string
		pos  int
	}{
		{"x", s.NX / 2},
		{"y", s.NY / 2},
		{"z", s.NZ / 2},
	}

	var files []string
	for _, c := range centers {
		img, err := v.ExtractSlice(c.axis, c.pos)
		if err != nil {
			return files, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_slice_%s.png", prefix, c.axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
