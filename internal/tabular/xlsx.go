// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/facility-match/pkg/types"
)

// DefaultSheet is the sheet name used when writing a workbook without one.
const DefaultSheet = "Results"

// readXLSX reads the named sheet, or the first sheet when sheet is empty.
// The first row is the header.
func readXLSX(r io.Reader, sheet string) (types.Collection, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return types.Collection{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return types.Collection{}, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return types.Collection{}, fmt.Errorf("sheet %q not found (have %v)", sheet, f.GetSheetList())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return types.Collection{}, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return types.Collection{}, fmt.Errorf("sheet %q is empty", sheet)
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		body = append(body, row)
	}
	return buildCollection(rows[0], body), nil
}

// writeXLSX writes rs as a single-sheet workbook. Null cells are left
// empty; other cells keep their numeric or boolean type.
func writeXLSX(w io.Writer, rs types.ResultSet, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("creating sheet writer: %w", err)
	}

	header := make([]any, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rs.Rows {
		cells := make([]any, len(row.Values))
		for j, v := range row.Values {
			cells[j] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func xlsxCell(v types.Value) any {
	if v.Kind() == types.KindFloat {
		if f := v.Interface().(float64); math.IsNaN(f) || math.IsInf(f, 0) {
			return v.String()
		}
	}
	return v.Interface()
}
