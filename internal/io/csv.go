package io

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/paveg/ocpanel/internal/dataset"
)

// ctxCheckInterval is how many rows a reader consumes between context checks
const ctxCheckInterval = 1024

// Read reads CSV data and returns a Dataset
func (r *CSVReader) Read(ctx context.Context) (*dataset.Dataset, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	var records [][]string
	for {
		if len(records)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		records = append(records, record)
	}

	// Handle empty CSV
	if len(records) == 0 {
		return dataset.New(), nil
	}

	var headers []string
	var dataRows [][]string
	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		headers = defaultHeaders(len(records[0]))
		dataRows = records
	}

	seriesList, err := columnsFromRows(headers, dataRows, r.mem)
	if err != nil {
		return nil, err
	}
	return dataset.New(seriesList...), nil
}

// Write writes the Dataset to CSV format. Missing values are written as empty fields.
func (w *CSVWriter) Write(ds *dataset.Dataset) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	columns := ds.Columns()
	if w.options.Header {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	series := make([]dataset.ISeries, len(columns))
	for j, name := range columns {
		series[j], _ = ds.Column(name)
	}

	row := make([]string, len(columns))
	for i := range ds.Len() {
		for j, s := range series {
			row[j] = s.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
