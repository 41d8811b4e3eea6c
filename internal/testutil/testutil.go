// Package testutil provides common testing utilities shared by the pipeline
// packages: allocator setup, a small deterministic firm-year panel, and
// dataset assertions.
package testutil

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Missing marks a missing numeric observation in fixtures.
var Missing = math.NaN()

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator with automatic cleanup for tests.
// Returns a TestMemoryContext that should be released with defer.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewGoAllocator()

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup: func() {
			// Go allocator memory is reclaimed by the GC
		},
	}
}

// PanelRow is one firm-year observation used to build fixtures.
// Float fields set to Missing become nulls.
type PanelRow struct {
	Ticker       string
	Sector       string
	Year         int64
	OC1          int64
	OC2          int64
	OC3          int64
	OC4          int64
	N1           int64
	N2           int64
	NM           int64
	WROA         float64
	WQTobin      float64
	Divev        float64
	MedianaDivev float64
}

// DefaultPanel is the standard fixture: sectors Energy and Tech, years 2019 and 2020.
//
//nolint:gochecknoglobals // read-only fixture
var DefaultPanel = []PanelRow{
	{Ticker: "PETR4", Sector: "Energy", Year: 2019, OC1: 1, OC3: 1, N2: 1, WROA: 0.10, WQTobin: 1.1, Divev: 0.50, MedianaDivev: 0.30},
	{Ticker: "PETR4", Sector: "Energy", Year: 2020, OC1: 1, OC3: 1, N2: 1, WROA: 0.05, WQTobin: 0.9, Divev: 0.70, MedianaDivev: 0.35},
	{Ticker: "ENBR3", Sector: "Energy", Year: 2019, OC2: 1, NM: 1, WROA: 0.08, WQTobin: 1.3, Divev: 0.20, MedianaDivev: 0.30},
	{Ticker: "ENBR3", Sector: "Energy", Year: 2020, OC3: 1, OC4: 1, NM: 1, WROA: Missing, WQTobin: 1.2, Divev: 0.45, MedianaDivev: 0.35},
	{Ticker: "TOTS3", Sector: "Tech", Year: 2019, OC4: 1, NM: 1, WROA: 0.12, WQTobin: 2.5, Divev: 0.10, MedianaDivev: 0.15},
	{Ticker: "TOTS3", Sector: "Tech", Year: 2020, OC3: 1, NM: 1, WROA: 0.14, WQTobin: 2.7, Divev: 0.25, MedianaDivev: 0.20},
	{Ticker: "LWSA3", Sector: "Tech", Year: 2020, OC1: 1, OC3: 1, N1: 1, WROA: -0.02, WQTobin: 3.1, Divev: 0.25, MedianaDivev: 0.20},
	{Ticker: "POSI3", Sector: "Tech", Year: 2020, N1: 1, WROA: 0.01, WQTobin: 0.8, Divev: 0.05, MedianaDivev: 0.20},
}

// PanelColumns lists the fixture columns in order.
//
//nolint:gochecknoglobals // read-only fixture
var PanelColumns = []string{
	"ticker", "setor", "ano",
	"oc1", "oc2", "oc3", "oc4", "oc134", "oc234",
	"n1", "n2", "nm",
	"wroa", "wqtobin", "divev", "mediana_divev",
}

// CreatePanelDataset builds a Dataset from rows (DefaultPanel when none are given).
//
// Example usage:
//
//	ds := testutil.CreatePanelDataset(mem.Allocator)
//	defer ds.Release()
func CreatePanelDataset(allocator memory.Allocator, rows ...PanelRow) *dataset.Dataset {
	if len(rows) == 0 {
		rows = DefaultPanel
	}

	n := len(rows)
	tickers := make([]string, n)
	sectors := make([]string, n)
	years := make([]int64, n)
	oc1, oc2, oc3, oc4 := make([]int64, n), make([]int64, n), make([]int64, n), make([]int64, n)
	oc134, oc234 := make([]int64, n), make([]int64, n)
	n1, n2, nm := make([]int64, n), make([]int64, n), make([]int64, n)
	wroa, tobin := make([]float64, n), make([]float64, n)
	divev, median := make([]float64, n), make([]float64, n)

	for i, r := range rows {
		tickers[i], sectors[i], years[i] = r.Ticker, r.Sector, r.Year
		oc1[i], oc2[i], oc3[i], oc4[i] = r.OC1, r.OC2, r.OC3, r.OC4
		oc134[i] = anyFlag(r.OC1, r.OC3, r.OC4)
		oc234[i] = anyFlag(r.OC2, r.OC3, r.OC4)
		n1[i], n2[i], nm[i] = r.N1, r.N2, r.NM
		wroa[i], tobin[i] = r.WROA, r.WQTobin
		divev[i], median[i] = r.Divev, r.MedianaDivev
	}

	return dataset.New(
		series.New("ticker", tickers, allocator),
		series.New("setor", sectors, allocator),
		series.New("ano", years, allocator),
		series.New("oc1", oc1, allocator),
		series.New("oc2", oc2, allocator),
		series.New("oc3", oc3, allocator),
		series.New("oc4", oc4, allocator),
		series.New("oc134", oc134, allocator),
		series.New("oc234", oc234, allocator),
		series.New("n1", n1, allocator),
		series.New("n2", n2, allocator),
		series.New("nm", nm, allocator),
		Float64Column("wroa", wroa, allocator),
		Float64Column("wqtobin", tobin, allocator),
		Float64Column("divev", divev, allocator),
		Float64Column("mediana_divev", median, allocator),
	)
}

// CreateLargePanelDataset builds a panel of count rows cycling through DefaultPanel.
func CreateLargePanelDataset(allocator memory.Allocator, count int) *dataset.Dataset {
	rows := make([]PanelRow, count)
	for i := range count {
		rows[i] = DefaultPanel[i%len(DefaultPanel)]
	}
	return CreatePanelDataset(allocator, rows...)
}

// Float64Column builds a float column where NaN entries become nulls.
func Float64Column(name string, values []float64, allocator memory.Allocator) *series.Series[float64] {
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = !math.IsNaN(v)
	}
	s, err := series.NewNullable(name, values, valid, allocator)
	if err != nil {
		panic(err)
	}
	return s
}

// ColumnValues returns every cell of a column as untyped values (nil for missing).
func ColumnValues(t *testing.T, ds *dataset.Dataset, column string) []any {
	t.Helper()

	s, exists := ds.Column(column)
	require.True(t, exists, "column %s should exist", column)

	values := make([]any, s.Len())
	for i := range values {
		values[i] = s.Interface(i)
	}
	return values
}

// AssertDatasetEqual performs deep equality comparison of Datasets.
func AssertDatasetEqual(t *testing.T, expected, actual *dataset.Dataset) {
	t.Helper()

	require.NotNil(t, expected, "expected Dataset should not be nil")
	require.NotNil(t, actual, "actual Dataset should not be nil")

	assert.Equal(t, expected.Len(), actual.Len(), "Dataset lengths should match")
	assert.Equal(t, expected.Columns(), actual.Columns(), "Dataset columns should match")

	for _, colName := range expected.Columns() {
		assert.Equal(t, ColumnValues(t, expected, colName), ColumnValues(t, actual, colName),
			"column %s data should match", colName)
	}
}

func anyFlag(flags ...int64) int64 {
	for _, f := range flags {
		if f == 1 {
			return 1
		}
	}
	return 0
}
