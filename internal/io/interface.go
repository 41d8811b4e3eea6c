// Package io provides I/O operations for reading and writing panel Datasets.
//
// This package includes readers for the supported tabular sources and writers
// for the export formats, with automatic type inference and schema handling.
//
// Key components:
//   - DataReader/DataWriter interfaces for pluggable I/O backends
//   - XLSXReader/XLSXWriter for spreadsheet workbooks (excelize)
//   - CSVReader/CSVWriter for delimited text
//   - ParquetReader/ParquetWriter for columnar files (arrow pqarrow)
//   - Loader, which resolves a Source to a reader and normalizes column names
//
// Memory management: All I/O operations integrate with Apache Arrow's
// memory management system and require proper cleanup with defer patterns.
package io

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
)

const (
	// DefaultBatchSize is the default batch size for I/O operations
	DefaultBatchSize = 1000
	// DefaultSheet is the sheet label used when writing a workbook without one
	DefaultSheet = "Sheet1"
)

// DataReader defines the interface for reading data from various sources
type DataReader interface {
	// Read reads data from the source and returns a Dataset
	Read(ctx context.Context) (*dataset.Dataset, error)
}

// DataWriter defines the interface for writing data to various destinations
type DataWriter interface {
	// Write writes the Dataset to the destination
	Write(ds *dataset.Dataset) error
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:        ',',
		Comment:          0,
		Header:           true,
		SkipInitialSpace: false,
	}
}

// CSVReader reads CSV data and converts it to Datasets
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes Datasets to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data and converts it to Datasets
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes Datasets to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}

// XLSXOptions contains configuration options for workbook operations
type XLSXOptions struct {
	// Sheet is the sheet to read, or the label of the sheet to write.
	// Reading an empty Sheet uses the first sheet of the workbook.
	Sheet string
}

// DefaultXLSXOptions returns default workbook options
func DefaultXLSXOptions() XLSXOptions {
	return XLSXOptions{}
}

// XLSXReader reads the first row of a sheet as headers and the rest as data
type XLSXReader struct {
	reader  io.Reader
	options XLSXOptions
	mem     memory.Allocator
}

// NewXLSXReader creates a new workbook reader with the specified options
func NewXLSXReader(reader io.Reader, options XLSXOptions, mem memory.Allocator) *XLSXReader {
	return &XLSXReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// XLSXWriter writes a Dataset as a single-sheet workbook
type XLSXWriter struct {
	writer  io.Writer
	options XLSXOptions
}

// NewXLSXWriter creates a new workbook writer with the specified options
func NewXLSXWriter(writer io.Writer, options XLSXOptions) *XLSXWriter {
	return &XLSXWriter{
		writer:  writer,
		options: options,
	}
}
