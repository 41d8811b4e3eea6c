package io

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/series"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"

	typeInt64   = "int64"
	typeFloat64 = "float64"
	typeBool    = "bool"
	typeString  = "string"
)

// columnFromCells builds a series from text cells, inferring the most
// specific type every non-empty cell parses as. Empty cells become nulls.
// When text is non-nil, cells flagged as stored text are kept verbatim and
// force the column to string.
func columnFromCells(name string, cells []string, text []bool, mem memory.Allocator) (dataset.ISeries, error) {
	valid := make([]bool, len(cells))
	hasText := false
	for i, cell := range cells {
		if text != nil && text[i] {
			valid[i] = true
			hasText = true
			continue
		}
		cells[i] = strings.TrimSpace(cell)
		valid[i] = !isNullCell(cells[i])
	}

	dataType := typeString
	if !hasText {
		dataType = inferDataType(cells, valid)
	}

	switch dataType {
	case typeBool:
		values := make([]bool, len(cells))
		for i, cell := range cells {
			values[i] = valid[i] && strings.EqualFold(cell, trueStr)
		}
		return series.NewNullable(name, values, valid, mem)
	case typeInt64:
		values := make([]int64, len(cells))
		for i, cell := range cells {
			if valid[i] {
				values[i], _ = strconv.ParseInt(cell, 10, 64)
			}
		}
		return series.NewNullable(name, values, valid, mem)
	case typeFloat64:
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if valid[i] {
				values[i], _ = strconv.ParseFloat(cell, 64)
			}
		}
		return series.NewNullable(name, values, valid, mem)
	default:
		return series.NewNullable(name, cells, valid, mem)
	}
}

// inferDataType determines the most appropriate data type for the given cells
func inferDataType(cells []string, valid []bool) string {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for i, value := range cells {
		if !valid[i] {
			continue // Skip empty values for type inference
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}

		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}

		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	// If all values are empty, default to string
	if !hasNonEmptyValue {
		return typeString
	}

	// Return the most specific type
	if canBeBool {
		return typeBool
	}
	if canBeInt {
		return typeInt64
	}
	if canBeFloat {
		return typeFloat64
	}
	return typeString
}

func isNullCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "nan", "null", "#n/a":
		return true
	default:
		return false
	}
}

// normalizeHeader trims and lower-cases a column name. Blank headers are
// named after their position.
func normalizeHeader(name string, position int) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return fmt.Sprintf("column_%d", position)
	}
	return normalized
}

// columnsFromRows transposes header and data rows into inferred series.
// Short rows are padded with empty cells.
func columnsFromRows(headers []string, rows [][]string, mem memory.Allocator) ([]dataset.ISeries, error) {
	return columnsFromTypedRows(headers, rows, nil, mem)
}

// columnsFromTypedRows is columnsFromRows for sources that record which
// cells are stored as text. text may be nil.
func columnsFromTypedRows(headers []string, rows [][]string, text [][]bool, mem memory.Allocator) ([]dataset.ISeries, error) {
	seriesList := make([]dataset.ISeries, 0, len(headers))
	for i, header := range headers {
		header = normalizeHeader(header, i)
		cells := make([]string, len(rows))
		var textCells []bool
		if text != nil {
			textCells = make([]bool, len(rows))
		}
		for j, row := range rows {
			if i < len(row) {
				cells[j] = row[i]
				if textCells != nil && i < len(text[j]) {
					textCells[j] = text[j][i]
				}
			}
		}
		s, err := columnFromCells(header, cells, textCells, mem)
		if err != nil {
			for _, created := range seriesList {
				created.Release()
			}
			return nil, fmt.Errorf("creating series for column %s: %w", header, err)
		}
		seriesList = append(seriesList, s)
	}
	return seriesList, nil
}

// defaultHeaders generates names for sources without a header row
func defaultHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i)
	}
	return headers
}
