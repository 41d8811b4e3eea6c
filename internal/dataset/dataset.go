// Package dataset provides the immutable in-memory panel table the pipeline reads.
package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/series"
)

// Dataset represents a table of data with typed columns.
// Column lookups are case-insensitive. A Dataset is never mutated after
// construction; every transforming method returns a new value that holds its
// own references to the shared column memory.
type Dataset struct {
	columns map[string]ISeries // keyed by lower-cased name
	order   []string           // Maintains column order
}

// Field describes one column of the schema.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// New creates a new Dataset from a slice of ISeries. A later column with the
// same name (ignoring case) replaces an earlier one in place.
func New(series ...ISeries) *Dataset {
	columns := make(map[string]ISeries, len(series))
	order := make([]string, 0, len(series))

	for _, s := range series {
		key := normalize(s.Name())
		if _, exists := columns[key]; !exists {
			order = append(order, s.Name())
		} else {
			for i, name := range order {
				if normalize(name) == key {
					order[i] = s.Name()
				}
			}
		}
		columns[key] = s
	}

	return &Dataset{
		columns: columns,
		order:   order,
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Columns returns the names of all columns in order
func (ds *Dataset) Columns() []string {
	if len(ds.order) == 0 {
		return []string{}
	}
	return append([]string(nil), ds.order...)
}

// Len returns the number of rows
func (ds *Dataset) Len() int {
	if len(ds.order) == 0 {
		return 0
	}
	return ds.columns[normalize(ds.order[0])].Len()
}

// Width returns the number of columns
func (ds *Dataset) Width() int {
	return len(ds.columns)
}

// Column returns the series for the given column name
func (ds *Dataset) Column(name string) (ISeries, bool) {
	s, exists := ds.columns[normalize(name)]
	return s, exists
}

// HasColumn checks if a column exists
func (ds *Dataset) HasColumn(name string) bool {
	_, exists := ds.columns[normalize(name)]
	return exists
}

// Schema returns the name and Arrow type of every column in order
func (ds *Dataset) Schema() []Field {
	fields := make([]Field, 0, len(ds.order))
	for _, name := range ds.order {
		fields = append(fields, Field{Name: name, Type: ds.columns[normalize(name)].DataType().Name()})
	}
	return fields
}

// Select returns a new Dataset with only the specified columns, in the given order.
// Unknown names are skipped; validate beforehand when that matters.
func (ds *Dataset) Select(names ...string) *Dataset {
	selected := make([]ISeries, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		key := normalize(name)
		s, exists := ds.columns[key]
		if !exists || seen[key] {
			continue
		}
		seen[key] = true
		s.Retain()
		selected = append(selected, s)
	}

	return New(selected...)
}

// Drop returns a new Dataset without the specified columns
func (ds *Dataset) Drop(names ...string) *Dataset {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[normalize(name)] = true
	}

	kept := make([]string, 0, len(ds.order))
	for _, name := range ds.order {
		if !dropSet[normalize(name)] {
			kept = append(kept, name)
		}
	}
	return ds.Select(kept...)
}

// WithColumn returns a new Dataset with s appended, or replacing the column
// of the same name at its existing position.
func (ds *Dataset) WithColumn(s ISeries) (*Dataset, error) {
	if ds.Width() > 0 && s.Len() != ds.Len() {
		return nil, ocerrors.NewInvalidParameterError("WithColumn",
			fmt.Sprintf("column %s has length %d, dataset has %d rows", s.Name(), s.Len(), ds.Len()))
	}

	out := make([]ISeries, 0, len(ds.order)+1)
	replaced := false
	for _, name := range ds.order {
		if normalize(name) == normalize(s.Name()) {
			out = append(out, s)
			replaced = true
			continue
		}
		existing := ds.columns[normalize(name)]
		existing.Retain()
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, s)
	}
	return New(out...), nil
}

// Prepend returns a new Dataset with s inserted as the first column
func (ds *Dataset) Prepend(s ISeries) (*Dataset, error) {
	if ds.Width() > 0 && s.Len() != ds.Len() {
		return nil, ocerrors.NewInvalidParameterError("Prepend",
			fmt.Sprintf("column %s has length %d, dataset has %d rows", s.Name(), s.Len(), ds.Len()))
	}

	out := make([]ISeries, 0, len(ds.order)+1)
	out = append(out, s)
	for _, name := range ds.order {
		if normalize(name) == normalize(s.Name()) {
			continue
		}
		existing := ds.columns[normalize(name)]
		existing.Retain()
		out = append(out, existing)
	}
	return New(out...), nil
}

// Take returns a new Dataset holding the rows at indices, in that order
func (ds *Dataset) Take(indices []int) (*Dataset, error) {
	length := ds.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= length {
			return nil, ocerrors.NewInvalidParameterError("Take",
				fmt.Sprintf("index %d out of bounds [0, %d)", idx, length))
		}
	}

	// Use dedicated memory allocator so results never share builders
	mem := memory.NewGoAllocator()

	taken := make([]ISeries, 0, len(ds.order))
	for _, name := range ds.order {
		s, err := takeSeries(ds.columns[normalize(name)], indices, mem)
		if err != nil {
			for _, created := range taken {
				created.Release()
			}
			return nil, fmt.Errorf("taking rows of column %s: %w", name, err)
		}
		taken = append(taken, s)
	}

	return New(taken...), nil
}

// Filter returns the rows whose mask entry is true, preserving row order
func (ds *Dataset) Filter(mask []bool) (*Dataset, error) {
	if len(mask) != ds.Len() {
		return nil, ocerrors.NewInvalidParameterError("Filter",
			fmt.Sprintf("mask has length %d, dataset has %d rows", len(mask), ds.Len()))
	}

	indices := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return ds.Take(indices)
}

// Slice creates a new Dataset containing rows from start (inclusive) to end (exclusive).
// The range is clamped to the available rows.
func (ds *Dataset) Slice(start, end int) (*Dataset, error) {
	if start < 0 {
		start = 0
	}
	if end > ds.Len() {
		end = ds.Len()
	}

	indices := make([]int, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return ds.Take(indices)
}

// Distinct returns the distinct non-missing values of a column, sorted with Compare
func (ds *Dataset) Distinct(column string) ([]any, error) {
	s, exists := ds.Column(column)
	if !exists {
		return nil, ocerrors.NewMissingColumnError("Distinct", column)
	}

	seen := make(map[string]bool)
	var values []any
	for i := range s.Len() {
		v := s.Interface(i)
		key, ok := Key(v)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}

	sort.SliceStable(values, func(i, j int) bool {
		return Compare(values[i], values[j]) < 0
	})
	return values, nil
}

// Record returns the cell values of row i in column order; missing cells are nil
func (ds *Dataset) Record(i int) []any {
	record := make([]any, len(ds.order))
	for j, name := range ds.order {
		record[j] = ds.columns[normalize(name)].Interface(i)
	}
	return record
}

// String returns a string representation of the Dataset
func (ds *Dataset) String() string {
	if len(ds.columns) == 0 {
		return "Dataset[empty]"
	}

	parts := []string{fmt.Sprintf("Dataset[%dx%d]", ds.Len(), ds.Width())}

	for _, name := range ds.order {
		s := ds.columns[normalize(name)]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, s.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases this Dataset's references to the underlying Arrow memory
func (ds *Dataset) Release() {
	for _, s := range ds.columns {
		s.Release()
	}
}

// takeSeries gathers rows from a typed series into independent memory
func takeSeries(s ISeries, indices []int, mem memory.Allocator) (ISeries, error) {
	switch typed := s.(type) {
	case *series.Series[string]:
		return typed.Take(indices, mem), nil
	case *series.Series[int64]:
		return typed.Take(indices, mem), nil
	case *series.Series[float64]:
		return typed.Take(indices, mem), nil
	case *series.Series[bool]:
		return typed.Take(indices, mem), nil
	default:
		return nil, ocerrors.NewInternalError("Take", fmt.Errorf("unsupported series type %T", s))
	}
}
