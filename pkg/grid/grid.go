// Package grid loads reservoir grids from disk. The adapter is chosen by
// sniffing the file header, with the extension as a fallback.
package grid

import (
	"errors"
	"fmt"
	"io"
	"os"

	"vargrest/internal/models"
)

var (
	// ErrUnknownFormat is returned when no adapter recognizes a file
	ErrUnknownFormat = errors.New("grid: unknown file format")
	// ErrUnsupportedFormat is returned for recognized formats that cannot be read
	ErrUnsupportedFormat = errors.New("grid: unsupported file format")
	// ErrVariableNotFound is returned when the requested property is missing
	ErrVariableNotFound = errors.New("grid: variable not found")
)

// LoadOptions selects what is read from a file
type LoadOptions struct {
	// Variable is the property to read; empty picks the first 3D variable
	Variable string

	// Categorical marks the values as facies codes
	Categorical bool

	// Step selects the record of a time dependent variable
	Step int

	// ArchelVariable and ArchelCodes deactivate every cell whose
	// architectural element is not listed
	ArchelVariable string
	ArchelCodes    []float64
}

// Adapter reads one file format
type Adapter interface {
	Name() string
	// Detect reports whether the file with the given leading bytes and
	// path is in the adapter's format
	Detect(header []byte, path string) bool
	Load(path string, opts LoadOptions) (*models.Grid, error)
}

// Adapters lists the known formats in detection order
var Adapters = []Adapter{Delft3D{}, RESQML{}}

// headerSize is enough for the NetCDF, HDF5 and zip signatures
const headerSize = 8

// Detect returns the adapter for the file at path
func Detect(path string) (Adapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening grid file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading grid file: %w", err)
	}
	header = header[:n]

	for _, a := range Adapters {
		if a.Detect(header, path) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load detects the format of path and reads the grid. The result is
// validated before it is returned.
func Load(path string, opts LoadOptions) (*models.Grid, error) {
	a, err := Detect(path)
	if err != nil {
		return nil, err
	}
	g, err := a.Load(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	return g, nil
}
