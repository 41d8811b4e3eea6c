package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
)

// Format identifies a source file format
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat maps a file extension to its Format
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", ocerrors.NewInvalidParameterError("Load",
			fmt.Sprintf("unsupported source format %q", filepath.Ext(path)))
	}
}

// Source names the tabular file a Dataset is loaded from
type Source struct {
	Path string
	// Sheet selects the workbook sheet; empty means the first sheet
	Sheet string
	// Format overrides extension-based detection when set
	Format Format
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLogger sets the logger used for load diagnostics
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithTimeout bounds how long a single load may take. Zero disables the bound.
func WithTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

// WithAllocator sets the Arrow allocator for loaded columns
func WithAllocator(mem memory.Allocator) LoaderOption {
	return func(l *Loader) {
		l.mem = mem
	}
}

// Loader reads a Source into a Dataset. Every reader trims and lower-cases
// column names, so lookups downstream never depend on the source's casing.
type Loader struct {
	logger  *slog.Logger
	timeout time.Duration
	mem     memory.Allocator
}

// NewLoader creates a Loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger: slog.Default(),
		mem:    memory.NewGoAllocator(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads src. A missing file fails with a source-not-found error; the
// file itself is never modified.
func (l *Loader) Load(ctx context.Context, src Source) (*dataset.Dataset, error) {
	start := time.Now()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	format := src.Format
	if format == "" {
		detected, err := DetectFormat(src.Path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	file, err := os.Open(src.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ocerrors.NewSourceNotFoundError("Load", src.Path, err)
		}
		return nil, fmt.Errorf("opening %s: %w", src.Path, err)
	}
	defer file.Close()

	var reader DataReader
	switch format {
	case FormatXLSX:
		reader = NewXLSXReader(file, XLSXOptions{Sheet: src.Sheet}, l.mem)
	case FormatCSV:
		reader = NewCSVReader(file, DefaultCSVOptions(), l.mem)
	case FormatParquet:
		reader = NewParquetReader(file, DefaultParquetOptions(), l.mem)
	default:
		return nil, ocerrors.NewInvalidParameterError("Load", fmt.Sprintf("unsupported source format %q", format))
	}

	ds, err := reader.Read(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("loading %s: %w", src.Path, ctxErr)
		}
		return nil, fmt.Errorf("loading %s: %w", src.Path, err)
	}

	l.logger.Info("dataset loaded",
		slog.String("path", src.Path),
		slog.String("format", string(format)),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", ds.Width()),
		slog.Duration("duration", time.Since(start)))

	return ds, nil
}

// Load reads src with a default Loader
func Load(ctx context.Context, src Source) (*dataset.Dataset, error) {
	return NewLoader().Load(ctx, src)
}
