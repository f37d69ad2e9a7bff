package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"vargrest/pkg/estimation"
)

// Format names accepted by Save
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// ErrUnknownFormat is returned by Save for an unrecognized format name
var ErrUnknownFormat = errors.New("report: unknown output format")

// WriteJSON writes the reports as an indented JSON array
func WriteJSON(w io.Writer, reports ...*estimation.Report) error {
	docs := make([]Document, len(reports))
	for i, r := range reports {
		docs[i] = NewDocument(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("error encoding JSON report: %w", err)
	}
	return nil
}

// WriteYAML writes one report as a YAML document
func WriteYAML(w io.Writer, r *estimation.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(r)); err != nil {
		return fmt.Errorf("error encoding YAML report: %w", err)
	}
	return enc.Close()
}

// summaryColumns is the column order of the summary table. The box is
// left out of the table and only kept in the JSON and YAML reports.
var summaryColumns = []string{
	"identifier",
	"family",
	"archel_filter",
	"indicator",
	"attribute",
	"quality[<1.0]",
	"r_major[m]",
	"r_minor[m]",
	"azimuth[deg]",
	"r_vertical[m]",
	"sigma[N/A]",
	"quality_x[<1.0]",
	"quality_y[<1.0]",
	"quality_z[<1.0]",
}

const (
	headerWidth = 18
	cellWidth   = 17
)

// WriteSummaryCSV writes the summaries as a fixed-width table, one row per
// run. Text is cut to the column width; floats keep five significant digits.
func WriteSummaryCSV(w io.Writer, summaries []estimation.Summary) error {
	header := make([]string, len(summaryColumns))
	for i, c := range summaryColumns {
		header[i] = pad(c, headerWidth)
	}
	if _, err := fmt.Fprintln(w, strings.TrimSpace(strings.Join(header, ""))); err != nil {
		return err
	}

	for _, s := range summaries {
		row := []string{
			textCell(s.Identifier),
			textCell(s.Family),
			textCell(s.ArchelFilter),
			textCell(s.Indicator),
			textCell(s.Attribute),
			floatCell(s.Quality),
			floatCell(s.RMajor),
			floatCell(s.RMinor),
			floatCell(s.Azimuth),
			floatCell(s.RVertical),
			floatCell(s.Sigma),
			floatCell(s.QualityX),
			floatCell(s.QualityY),
			floatCell(s.QualityZ),
		}
		if _, err := fmt.Fprintln(w, strings.TrimSpace(strings.Join(row, " "))); err != nil {
			return err
		}
	}
	return nil
}

func pad(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func textCell(s string) string {
	return pad(s, cellWidth)
}

// floatCell leaves room for a sign so columns line up
func floatCell(v float64) string {
	var s string
	switch {
	case math.IsNaN(v):
		s = " nan"
	case v < 0:
		s = strconv.FormatFloat(v, 'g', 5, 64)
	default:
		s = " " + strconv.FormatFloat(v, 'g', 5, 64)
	}
	return pad(s, cellWidth)
}

// Save writes r to dir in each of the formats. Files are named after the
// report identifier, falling back to the report ID.
func Save(dir string, r *estimation.Report, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	base := r.Identifier
	if base == "" {
		base = r.ID
	}

	var written []string
	for _, format := range formats {
		var (
			path  string
			write func(io.Writer) error
		)
		switch strings.ToLower(format) {
		case FormatJSON:
			path = filepath.Join(dir, base+".json")
			write = func(w io.Writer) error { return WriteJSON(w, r) }
		case FormatYAML, "yml":
			path = filepath.Join(dir, base+".yaml")
			write = func(w io.Writer) error { return WriteYAML(w, r) }
		case FormatCSV:
			path = filepath.Join(dir, base+"_summary.csv")
			write = func(w io.Writer) error { return WriteSummaryCSV(w, []estimation.Summary{r.Summary()}) }
		default:
			return written, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		if err := writeFile(path, write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
