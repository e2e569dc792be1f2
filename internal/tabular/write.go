// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/facility-match/pkg/types"
)

// Write encodes rs in format. The xlsx format writes a single sheet named
// sheet (DefaultSheet when empty); other formats ignore it.
func Write(w io.Writer, rs types.ResultSet, format, sheet string) error {
	switch normalizeFormat(format) {
	case FormatCSV:
		return writeDelimited(w, rs, ',')
	case FormatTSV:
		return writeDelimited(w, rs, '\t')
	case FormatXLSX:
		return writeXLSX(w, rs, sheet)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs.OrderedRows())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rs.OrderedRows()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteFile writes rs to path. An empty format is taken from the file
// extension.
func WriteFile(path string, rs types.ResultSet, format, sheet string) error {
	if format == "" {
		var err error
		format, err = FormatFromPath(path)
		if err != nil {
			return err
		}
	}
	if normalizeFormat(format) == FormatSQLite {
		return fmt.Errorf("cannot write results as %s", format)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, rs, format, sheet); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ContentType returns the MIME type and file extension for an output format.
func ContentType(format string) (string, string) {
	switch normalizeFormat(format) {
	case FormatTSV:
		return "text/tab-separated-values", ".tsv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"
	case FormatJSON:
		return "application/json", ".json"
	case FormatYAML:
		return "application/yaml", ".yaml"
	default:
		return "text/csv", ".csv"
	}
}

func writeDelimited(w io.Writer, rs types.ResultSet, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	line := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for j := range line {
			line[j] = ""
			if j < len(row.Values) {
				line[j] = csvCell(row.Values[j])
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvCell leaves null and NaN cells empty.
func csvCell(v types.Value) string {
	switch v.Kind() {
	case types.KindNull:
		return ""
	case types.KindFloat:
		if math.IsNaN(v.Interface().(float64)) {
			return ""
		}
	}
	return v.String()
}

// IsOutputFormat reports whether format can be written by Write.
func IsOutputFormat(format string) bool {
	switch normalizeFormat(strings.TrimSpace(format)) {
	case FormatCSV, FormatTSV, FormatXLSX, FormatJSON, FormatYAML:
		return true
	}
	return false
}
