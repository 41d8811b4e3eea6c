// Package views composes the filter, aggregate, rank and export stages into
// the analysis pages of the explorer. Each view takes an immutable Dataset
// snapshot and a request, and returns a result whose Empty flag reports that
// no rows matched; an empty result is not an error.
package views

import (
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/filter"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/rank"
)

// Workbook sheet labels
const (
	SheetFilteredData = "Dados_Filtrados"
	SheetCompanies    = "Empresas"
)

// Schema names the panel columns the views read
type Schema struct {
	Ticker     string
	Year       string
	Sector     string
	Indicators []string
	Governance []string
	Metrics    []string
	Asset      string
	Residual   string
	RankMetric string
}

// DefaultSchema returns the column names of the standard panel
func DefaultSchema() Schema {
	return Schema{
		Ticker:     "ticker",
		Year:       filter.DefaultYearColumn,
		Sector:     filter.DefaultSectorColumn,
		Indicators: []string{"oc1", "oc2", "oc3", "oc4", "oc134", "oc234"},
		Governance: []string{"n1", "n2", "nm"},
		Metrics:    []string{"wroa", "wroaebit", "wroe", "wqtobin", "wmgop", "wopor", "lnat", "divbrat"},
		Asset:      "creat",
		Residual:   "residuo",
		RankMetric: "divev_dif",
	}
}

func (s Schema) spec(opts ...filter.Option) filter.Spec {
	base := []filter.Option{filter.WithYearColumn(s.Year), filter.WithSectorColumn(s.Sector)}
	return filter.NewSpec(append(base, opts...)...)
}

// constrain appends opt(*sel) to opts unless sel is nil. A nil selection
// places no constraint, not even on missing values.
func constrain(opts []filter.Option, sel *filter.Selection, opt func(filter.Selection) filter.Option) []filter.Option {
	if sel == nil {
		return opts
	}
	return append(opts, opt(*sel))
}

// Table is a JSON-friendly rendering of a Dataset; missing cells are null
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable copies ds into a Table
func NewTable(ds *dataset.Dataset) Table {
	table := Table{Columns: ds.Columns(), Rows: make([][]any, ds.Len())}
	for i := range table.Rows {
		table.Rows[i] = ds.Record(i)
	}
	return table
}

// Result carries the rows every view shows and can export them on demand
type Result struct {
	View  string `json:"view"`
	Empty bool   `json:"empty"`
	Rows  Table  `json:"rows"`

	download   *dataset.Dataset
	entity     string
	descriptor string
	sheet      string
}

// Workbook serialises the view's export rows under the view's file name
func (r *Result) Workbook() (export.Blob, error) {
	return r.Export(ocio.FormatXLSX)
}

// Export serialises the view's export rows in format
func (r *Result) Export(format ocio.Format) (export.Blob, error) {
	if r.download == nil {
		return export.Blob{}, ocerrors.NewInvalidParameterError("Export", "view "+r.View+" has no export")
	}
	return export.File(r.download, format, r.entity, r.descriptor, r.sheet)
}

// Release releases the export rows held by the result
func (r *Result) Release() {
	if r.download != nil {
		r.download.Release()
		r.download = nil
	}
}

// Ranking is the side-by-side most/least list of a view
type Ranking struct {
	Metric string `json:"metric"`
	Top    Table  `json:"top"`
	Bottom Table  `json:"bottom"`
}

func ranking(rows *dataset.Dataset, metric string, topN int, columns ...string) (Ranking, error) {
	top, bottom, err := rank.Pair(rows, metric, topN)
	if err != nil {
		return Ranking{}, err
	}

	topTable, err := rank.Table(rows, top, columns...)
	if err != nil {
		return Ranking{}, err
	}
	defer topTable.Release()

	bottomTable, err := rank.Table(rows, bottom, columns...)
	if err != nil {
		return Ranking{}, err
	}
	defer bottomTable.Release()

	return Ranking{Metric: metric, Top: NewTable(topTable), Bottom: NewTable(bottomTable)}, nil
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
