package io

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/xuri/excelize/v2"
)

// Read reads the configured sheet (or the first one) and returns a Dataset.
// Cells are read raw so numbers keep their stored precision.
func (r *XLSXReader) Read(ctx context.Context) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(r.reader)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := r.options.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return dataset.New(), nil
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, ocerrors.NewSourceNotFoundError("Load", "sheet "+sheet, err)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records [][]string
	var text [][]bool
	for rows.Next() {
		if len(records)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading row %d of sheet %s: %w", len(records)+1, sheet, err)
		}
		kinds, err := cellKinds(f, sheet, len(records)+1, record)
		if err != nil {
			return nil, fmt.Errorf("reading row %d of sheet %s: %w", len(records)+1, sheet, err)
		}
		records = append(records, record)
		text = append(text, kinds)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}

	if len(records) == 0 {
		return dataset.New(), nil
	}

	seriesList, err := columnsFromTypedRows(records[0], records[1:], text[1:], r.mem)
	if err != nil {
		return nil, err
	}
	return dataset.New(seriesList...), nil
}

// cellKinds reports which cells of a row are stored as text. Text cells keep
// their value verbatim; boolean cells are rewritten in place as "true" or
// "false" so inference sees them as booleans. Number and untyped cells are
// left to inference.
func cellKinds(f *excelize.File, sheet string, row int, record []string) ([]bool, error) {
	text := make([]bool, len(record))
	for j := range record {
		cell, err := excelize.CoordinatesToCellName(j+1, row)
		if err != nil {
			return nil, err
		}
		kind, err := f.GetCellType(sheet, cell)
		if err != nil {
			return nil, err
		}

		//nolint:exhaustive // every other type is inferred from its text
		switch kind {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
			text[j] = true
		case excelize.CellTypeBool:
			record[j] = strconv.FormatBool(record[j] == "1" || strings.EqualFold(record[j], trueStr))
		}
	}
	return text, nil
}

// Write writes the Dataset as the only sheet of a workbook. Missing values
// become empty cells. Non-finite numbers and unsupported column types fail
// with a serialization error before anything is written.
func (w *XLSXWriter) Write(ds *dataset.Dataset) error {
	if err := CheckSerializable(ds); err != nil {
		return err
	}

	sheet := w.options.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return ocerrors.NewSerializationError("Export", "", fmt.Sprintf("invalid sheet label %q: %v", sheet, err))
	}

	columns := ds.Columns()
	for j, name := range columns {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return ocerrors.NewInternalError("Export", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return ocerrors.NewSerializationError("Export", name, err.Error())
		}
	}

	for j, name := range columns {
		s, _ := ds.Column(name)
		for i := range ds.Len() {
			v := s.Interface(i)
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return ocerrors.NewInternalError("Export", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return ocerrors.NewSerializationError("Export", name, err.Error())
			}
		}
	}

	if _, err := f.WriteTo(w.writer); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// CheckSerializable verifies every column has a cell-compatible type and
// every number is finite
func CheckSerializable(ds *dataset.Dataset) error {
	for _, name := range ds.Columns() {
		s, _ := ds.Column(name)

		//nolint:exhaustive // every other type is rejected
		switch s.DataType().ID() {
		case arrow.STRING, arrow.INT64, arrow.BOOL:
			continue
		case arrow.FLOAT64:
			for i := range s.Len() {
				f, ok := s.Interface(i).(float64)
				if ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
					return ocerrors.NewSerializationError("Export", name,
						fmt.Sprintf("non-finite value %v at row %d", f, i))
				}
			}
		default:
			return ocerrors.NewSerializationError("Export", name,
				fmt.Sprintf("unsupported column type %s", s.DataType().Name()))
		}
	}
	return nil
}
