// Package export shapes pipeline results into tabular views and serialises
// them as single-sheet workbooks, CSV or Parquet files with deterministic
// file names.
package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/paveg/ocpanel/internal/validation"
)

const (
	// Extension is the file extension of workbook exports
	Extension = ".xlsx"
	// CountColumn holds the observation count in aggregate views
	CountColumn = "n"
)

// Media types per export format
const (
	ContentType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType     = "text/csv; charset=utf-8"
	ParquetContentType = "application/vnd.apache.parquet"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Blob is a serialised export ready to be offered for download. Sheet is
// empty for formats without sheets.
type Blob struct {
	Filename string
	Sheet    string
	Format   ocio.Format
	Data     []byte
}

// ContentType returns the media type of the blob's format
func (b Blob) ContentType() string {
	switch b.Format {
	case ocio.FormatCSV:
		return CSVContentType
	case ocio.FormatParquet:
		return ParquetContentType
	default:
		return ContentType
	}
}

type rowsOptions struct {
	index bool
}

// RowsOption configures a Rows view
type RowsOption func(*rowsOptions)

// WithIndex prepends a 1-based "#" column
func WithIndex() RowsOption {
	return func(o *rowsOptions) {
		o.index = true
	}
}

// Rows builds a view of ds with exactly the given columns, in that order.
// With no columns every column is kept.
func Rows(ds *dataset.Dataset, columns []string, opts ...RowsOption) (*dataset.Dataset, error) {
	var cfg rowsOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(columns) == 0 {
		columns = ds.Columns()
	}
	if err := validation.ValidateColumns(ds, "Export", columns...); err != nil {
		return nil, err
	}

	view := ds.Select(columns...)
	if !cfg.index {
		return view, nil
	}
	defer view.Release()

	positions := make([]int64, view.Len())
	for i := range positions {
		positions[i] = int64(i + 1)
	}
	return view.Prepend(series.New(rank.PositionColumn, positions, memory.NewGoAllocator()))
}

// Aggregates builds a view of grouped means: one column per key, then the
// metric mean (missing for groups without observations), then the count.
func Aggregates(rows []aggregate.Row, keys []string, metric string) (*dataset.Dataset, error) {
	if len(keys) == 0 || metric == "" {
		return nil, ocerrors.NewInvalidParameterError("Export", "aggregate view needs key and metric names")
	}

	mem := memory.NewGoAllocator()
	columns := make([]dataset.ISeries, 0, len(keys)+2)
	release := func() {
		for _, c := range columns {
			c.Release()
		}
	}

	for k, name := range keys {
		cells := make([]any, len(rows))
		for i, r := range rows {
			if k >= len(r.Keys) {
				release()
				return nil, ocerrors.NewInvalidParameterError("Export",
					fmt.Sprintf("aggregate row %d has %d keys, view names %d", i, len(r.Keys), len(keys)))
			}
			cells[i] = r.Keys[k]
		}
		col, err := columnFromValues(name, cells, mem)
		if err != nil {
			release()
			return nil, err
		}
		columns = append(columns, col)
	}

	means := make([]float64, len(rows))
	valid := make([]bool, len(rows))
	counts := make([]int64, len(rows))
	for i, r := range rows {
		means[i], valid[i], counts[i] = r.Mean, r.Valid, int64(r.Count)
	}
	meanCol, err := series.NewNullable(metric, means, valid, mem)
	if err != nil {
		release()
		return nil, ocerrors.NewInternalError("Export", err)
	}
	columns = append(columns, meanCol, series.New(CountColumn, counts, mem))

	return dataset.New(columns...), nil
}

// Ranking builds a view of ranked rows with the leading "#" column
func Ranking(ds *dataset.Dataset, entries []rank.Entry, columns ...string) (*dataset.Dataset, error) {
	return rank.Table(ds, entries, columns...)
}

// Serialize writes view as a workbook whose only sheet is labelled sheet
func Serialize(view *dataset.Dataset, sheet string) ([]byte, error) {
	var buf bytes.Buffer
	if err := ocio.NewXLSXWriter(&buf, ocio.XLSXOptions{Sheet: sheet}).Write(view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook serialises view and names it after entity and descriptor
func Workbook(view *dataset.Dataset, entity, descriptor, sheet string) (Blob, error) {
	return File(view, ocio.FormatXLSX, entity, descriptor, sheet)
}

// File serialises view in format (a workbook when empty) and names it after
// entity and descriptor. sheet only applies to workbooks.
func File(view *dataset.Dataset, format ocio.Format, entity, descriptor, sheet string) (Blob, error) {
	if err := ocio.CheckSerializable(view); err != nil {
		return Blob{}, err
	}

	var buf bytes.Buffer
	switch format {
	case ocio.FormatXLSX, "":
		data, err := Serialize(view, sheet)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Filename: Filename(entity, descriptor), Sheet: sheet, Format: ocio.FormatXLSX, Data: data}, nil
	case ocio.FormatCSV:
		if err := ocio.NewCSVWriter(&buf, ocio.DefaultCSVOptions()).Write(view); err != nil {
			return Blob{}, ocerrors.NewSerializationError("Export", "", err.Error())
		}
	case ocio.FormatParquet:
		if err := ocio.NewParquetWriter(&buf, ocio.DefaultParquetOptions()).Write(view); err != nil {
			return Blob{}, ocerrors.NewSerializationError("Export", "", err.Error())
		}
	default:
		return Blob{}, ocerrors.NewInvalidParameterError("Export", fmt.Sprintf("unsupported export format %q", format))
	}
	return Blob{Filename: filename(entity, descriptor, "."+string(format)), Format: format, Data: buf.Bytes()}, nil
}

// Filename returns "{entity}_{descriptor}.xlsx" with both parts reduced to
// lower-case letters, digits, '_' and '-'. Empty parts are dropped.
func Filename(entity, descriptor string) string {
	return filename(entity, descriptor, Extension)
}

func filename(entity, descriptor, ext string) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{entity, descriptor} {
		if clean := sanitize(part); clean != "" {
			parts = append(parts, clean)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "export")
	}
	return strings.Join(parts, "_") + ext
}

func sanitize(part string) string {
	lower := strings.ToLower(strings.TrimSpace(part))
	return strings.Trim(unsafeChars.ReplaceAllString(lower, "_"), "_")
}

// columnFromValues builds a typed column from group key values. A column
// whose values are all integers stays integral, all numbers become float64,
// anything else is written as text.
func columnFromValues(name string, cells []any, mem memory.Allocator) (dataset.ISeries, error) {
	allInt, allNum := true, true
	for _, v := range cells {
		switch v.(type) {
		case nil:
		case int64:
		case float64:
			allInt = false
		default:
			allInt, allNum = false, false
		}
	}

	valid := make([]bool, len(cells))
	switch {
	case allInt:
		values := make([]int64, len(cells))
		for i, v := range cells {
			values[i], valid[i] = v.(int64)
		}
		return newColumn(name, values, valid, mem)
	case allNum:
		values := make([]float64, len(cells))
		for i, v := range cells {
			values[i], valid[i] = dataset.Float(v)
		}
		return newColumn(name, values, valid, mem)
	default:
		values := make([]string, len(cells))
		for i, v := range cells {
			values[i], valid[i] = dataset.Key(v)
		}
		return newColumn(name, values, valid, mem)
	}
}

func newColumn[T any](name string, values []T, valid []bool, mem memory.Allocator) (dataset.ISeries, error) {
	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, ocerrors.NewInternalError("Export", err)
	}
	return s, nil
}
