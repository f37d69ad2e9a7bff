package models

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	shape := Shape{NX: 2, NY: 2, NZ: 2}
	cell := CellSize{DX: 1, DY: 1, DZ: 1}

	testCases := []struct {
		name    string
		grid    *Grid
		wantErr error
	}{
		{"valid", NewGrid(shape, cell, make([]float64, 8)), nil},
		{"short values", &Grid{Shape: shape, CellSize: cell, Values: make([]float64, 7), Mask: make([]bool, 8)}, ErrShapeMismatch},
		{"short mask", &Grid{Shape: shape, CellSize: cell, Values: make([]float64, 8), Mask: make([]bool, 9)}, ErrShapeMismatch},
		{"empty", NewGrid(Shape{}, cell, nil), ErrEmptyGrid},
		{"zero cell", NewGrid(shape, CellSize{DX: 1, DY: 0, DZ: 1}, make([]float64, 8)), ErrInvalidCellSize},
	}

	for _, tc := range testCases {
		err := tc.grid.Validate()
		if tc.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestIndexLayout(t *testing.T) {
	g := NewGrid(Shape{NX: 3, NY: 4, NZ: 5}, CellSize{1, 1, 1}, make([]float64, 60))

	if g.Index(1, 0, 0) != 1 {
		t.Errorf("x should vary fastest, got index %d", g.Index(1, 0, 0))
	}
	if g.Index(0, 1, 0) != 3 {
		t.Errorf("expected y stride 3, got %d", g.Index(0, 1, 0))
	}
	if g.Index(0, 0, 1) != 12 {
		t.Errorf("expected z stride 12, got %d", g.Index(0, 0, 1))
	}
}

func TestActiveExcludesMaskAndNaN(t *testing.T) {
	g := NewGrid(Shape{NX: 4, NY: 1, NZ: 1}, CellSize{1, 1, 1}, []float64{1, math.NaN(), 3, 4})
	g.Mask[3] = false

	if g.ActiveCount() != 2 {
		t.Errorf("expected 2 active cells, got %d", g.ActiveCount())
	}
	if g.Active(1, 0, 0) {
		t.Error("NaN cell should be inactive")
	}
	if len(g.ActiveValues()) != 2 {
		t.Errorf("expected 2 active values, got %d", len(g.ActiveValues()))
	}
}

func TestIndicatorAndVariance(t *testing.T) {
	g := NewGrid(Shape{NX: 4, NY: 1, NZ: 1}, CellSize{1, 1, 1}, []float64{2, 5, 2, 5})
	g.Categorical = true

	ind := g.Indicator(5)
	expected := []float64{0, 1, 0, 1}
	for i, v := range expected {
		if ind.Values[i] != v {
			t.Errorf("indicator[%d]: expected %f, got %f", i, v, ind.Values[i])
		}
	}
	if ind.Categorical {
		t.Error("indicator grid should be continuous")
	}
	if math.Abs(ind.Variance()-0.25) > 1e-12 {
		t.Errorf("expected variance 0.25, got %f", ind.Variance())
	}

	// NaN cells must not come back as active zeros
	g = NewGrid(Shape{NX: 4, NY: 1, NZ: 1}, CellSize{1, 1, 1}, []float64{0, 1, math.NaN(), 1})
	ind = g.Indicator(1)
	if got, want := ind.ActiveCount(), g.ActiveCount(); got != want {
		t.Errorf("expected %d active indicator cells, got %d", want, got)
	}
	if ind.Active(2, 0, 0) {
		t.Error("NaN cell should stay inactive in the indicator grid")
	}
	if math.Abs(ind.Variance()-2.0/9.0) > 1e-12 {
		t.Errorf("expected variance 2/9, got %f", ind.Variance())
	}
}

func TestBox(t *testing.T) {
	values := make([]float64, 27)
	for i := range values {
		values[i] = float64(i)
	}
	g := NewGrid(Shape{NX: 3, NY: 3, NZ: 3}, CellSize{2, 2, 1}, values)

	sub, err := g.Box(1, 3, 0, 2, 2, 3)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	if sub.Shape != (Shape{NX: 2, NY: 2, NZ: 1}) {
		t.Fatalf("unexpected shape %+v", sub.Shape)
	}
	if sub.At(0, 0, 0) != g.At(1, 0, 2) {
		t.Errorf("expected first value %f, got %f", g.At(1, 0, 2), sub.At(0, 0, 0))
	}
	if sub.Origin.X != 2 || sub.Origin.Z != 2 {
		t.Errorf("unexpected origin %+v", sub.Origin)
	}

	if _, err := g.Box(0, 4, 0, 1, 0, 1); err == nil {
		t.Error("expected error for box outside grid")
	}
}
