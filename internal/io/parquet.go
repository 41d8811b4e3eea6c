package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/series"
)

// Read reads Parquet data and returns a Dataset.
func (r *ParquetReader) Read(ctx context.Context) (*dataset.Dataset, error) {
	// Read all data into memory for Parquet reading
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	readerAt := bytes.NewReader(data)

	pqReader, err := file.NewParquetReader(readerAt)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		BatchSize: int64(r.options.BatchSize),
	}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToDataset(table)
}

// arrowTableToDataset converts an Arrow table to a Dataset.
func (r *ParquetReader) arrowTableToDataset(table arrow.Table) (*dataset.Dataset, error) {
	seriesList := make([]dataset.ISeries, 0, table.NumCols())
	schema := table.Schema()

	for i := range int(table.NumCols()) {
		field := schema.Field(i)
		s, err := r.arrowColumnToSeries(normalizeHeader(field.Name, i), table.Column(i))
		if err != nil {
			for _, created := range seriesList {
				created.Release()
			}
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}

	return dataset.New(seriesList...), nil
}

// arrowColumnToSeries flattens every chunk of an Arrow column into one Series,
// keeping nulls and widening 32-bit types.
func (r *ParquetReader) arrowColumnToSeries(name string, column *arrow.Column) (dataset.ISeries, error) {
	chunks := column.Data().Chunks()
	n := column.Len()
	valid := make([]bool, 0, n)

	//nolint:exhaustive // Only handling supported types for now
	switch column.DataType().ID() {
	case arrow.INT64, arrow.INT32:
		values := make([]int64, 0, n)
		for _, chunk := range chunks {
			for i := range chunk.Len() {
				valid = append(valid, chunk.IsValid(i))
				switch arr := chunk.(type) {
				case *array.Int64:
					values = append(values, arr.Value(i))
				case *array.Int32:
					values = append(values, int64(arr.Value(i)))
				}
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case arrow.FLOAT64, arrow.FLOAT32:
		values := make([]float64, 0, n)
		for _, chunk := range chunks {
			for i := range chunk.Len() {
				valid = append(valid, chunk.IsValid(i))
				switch arr := chunk.(type) {
				case *array.Float64:
					values = append(values, arr.Value(i))
				case *array.Float32:
					values = append(values, float64(arr.Value(i)))
				}
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case arrow.STRING:
		values := make([]string, 0, n)
		for _, chunk := range chunks {
			arr := chunk.(*array.String)
			for i := range arr.Len() {
				valid = append(valid, arr.IsValid(i))
				values = append(values, arr.Value(i))
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case arrow.BOOL:
		values := make([]bool, 0, n)
		for _, chunk := range chunks {
			arr := chunk.(*array.Boolean)
			for i := range arr.Len() {
				valid = append(valid, arr.IsValid(i))
				values = append(values, arr.Value(i))
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return nil, fmt.Errorf("unsupported Arrow type: %s", column.DataType())
	}
}

// Write writes the Dataset to Parquet format.
func (w *ParquetWriter) Write(ds *dataset.Dataset) error {
	table := w.datasetToArrowTable(ds)
	defer table.Release()

	var compression compress.Compression
	switch w.options.Compression {
	case "gzip":
		compression = compress.Codecs.Gzip
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))

	writer, err := pqarrow.NewFileWriter(table.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	if err := writer.WriteTable(table, int64(max(ds.Len(), 1))); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

// datasetToArrowTable wraps the Dataset's column arrays in an Arrow table
func (w *ParquetWriter) datasetToArrowTable(ds *dataset.Dataset) arrow.Table {
	columns := ds.Columns()
	fields := make([]arrow.Field, 0, len(columns))
	arrays := make([]arrow.Array, 0, len(columns))

	for _, name := range columns {
		s, _ := ds.Column(name)
		arr := s.Array()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	record := array.NewRecord(schema, arrays, int64(ds.Len()))
	table := array.NewTableFromRecords(schema, []arrow.Record{record})
	record.Release()
	for _, arr := range arrays {
		arr.Release()
	}
	return table
}
