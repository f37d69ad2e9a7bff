package grid

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"vargrest/internal/models"
)

var (
	hdf5Magic = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
)

// RESQML recognizes RESQML packages (.epc) and their HDF5 companions.
// Reading them needs an HDF5 decoder, so Load always fails with
// ErrUnsupportedFormat.
type RESQML struct{}

func (RESQML) Name() string { return "resqml" }

func (RESQML) Detect(header []byte, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case bytes.HasPrefix(header, hdf5Magic):
		return true
	case bytes.HasPrefix(header, zipMagic):
		return ext == ".epc"
	}
	return ext == ".epc" || ext == ".h5" || ext == ".hdf5"
}

func (RESQML) Load(path string, _ LoadOptions) (*models.Grid, error) {
	return nil, fmt.Errorf("%w: RESQML/HDF5 file %s; convert it to NetCDF first", ErrUnsupportedFormat, path)
}
