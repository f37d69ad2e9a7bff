package variogram

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestModelEvaluate(t *testing.T) {
	tests := []struct {
		name string
		m    Model
		h    float64
		want float64
	}{
		{"origin", Model{Family: Spherical, Nugget: 0.2, Sill: 1, Range: 10}, 0, 0},
		{"spherical half range", Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 10}, 5, 0.1 + 0.75 - 0.0625},
		{"spherical at range", Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 10}, 10, 1.1},
		{"spherical beyond range", Model{Family: Spherical, Nugget: 0.1, Sill: 1, Range: 10}, 25, 1.1},
		{"exponential at range", Model{Family: Exponential, Sill: 2, Range: 4}, 4, 2 * (1 - math.Exp(-3))},
		{"gaussian at half range", Model{Family: Gaussian, Nugget: 0.5, Sill: 1, Range: 8}, 4, 0.5 + 1 - math.Exp(-0.75)},
		{"general exponential", Model{Family: GeneralExponential, Sill: 1, Range: 2, Power: 1.5}, 1, 1 - math.Exp(-3*math.Pow(0.5, 1.5))},
		{"negative lag", Model{Family: Exponential, Sill: 1, Range: 1}, -1, 1 - math.Exp(-3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Evaluate(tt.h); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Evaluate(%g) = %g, want %g", tt.h, got, tt.want)
			}
		})
	}
}

func TestParseFamily(t *testing.T) {
	for _, f := range Families {
		got, err := ParseFamily(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseFamily(" SPH ")
	require.NoError(t, err)
	assert.Equal(t, Spherical, got)

	_, err = ParseFamily("cubic")
	var ue *UnsupportedFamilyError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "cubic", ue.Name)
	assert.ErrorIs(t, err, ErrUnsupportedFamily)
}

func TestFamilyYAML(t *testing.T) {
	var doc struct {
		Family Family `yaml:"family"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("family: gaussian\n"), &doc))
	assert.Equal(t, Gaussian, doc.Family)

	out, err := yaml.Marshal(Model{Family: Exponential, Nugget: 0, Sill: 1, Range: 3})
	require.NoError(t, err)
	assert.Contains(t, string(out), "family: exponential")

	assert.Error(t, yaml.Unmarshal([]byte("family: cubic\n"), &doc))
}
