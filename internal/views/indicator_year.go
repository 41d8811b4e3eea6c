package views

import (
	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/filter"
	"github.com/paveg/ocpanel/internal/validation"
)

// IndicatorYearRequest selects firms flagged by any of several indicators.
// A nil Sectors leaves the sector unconstrained.
type IndicatorYearRequest struct {
	Sectors    *filter.Selection `json:"sectors,omitempty"`
	Indicators []string          `json:"indicators"`
	TopN       int               `json:"top_n"`
}

// IndicatorYearResult holds the flagged rows, their count per year (most
// recent first) and the most and least over-confident firms.
type IndicatorYearResult struct {
	Result
	Indicators []string          `json:"indicators"`
	Counts     []aggregate.Group `json:"counts"`
	Ranking    Ranking           `json:"ranking"`
}

// IndicatorYear keeps the rows of the selected sectors where at least one of
// the indicators is 1. No indicators means no rows.
func IndicatorYear(ds *dataset.Dataset, schema Schema, req IndicatorYearRequest) (*IndicatorYearResult, error) {
	opts := constrain(nil, req.Sectors, filter.WithSectors)
	spec := schema.spec(append(opts,
		filter.WithAnyFlagged(req.Indicators...),
		filter.WithMetric(schema.RankMetric),
	)...)
	rows, err := filter.Rows(ds, spec)
	if err != nil {
		return nil, err
	}
	defer rows.Release()

	display := concat([]string{schema.Year, schema.Sector, schema.Ticker}, req.Indicators, schema.Metrics)
	if err := validation.ValidateColumns(rows, "IndicatorYear", display...); err != nil {
		return nil, err
	}

	counts, err := aggregate.Count(rows, []string{schema.Year}, aggregate.Descending())
	if err != nil {
		return nil, err
	}

	ranked, err := ranking(rows, schema.RankMetric, req.TopN,
		schema.Year, schema.Sector, schema.Ticker, schema.RankMetric)
	if err != nil {
		return nil, err
	}

	download, err := export.Rows(rows, display)
	if err != nil {
		return nil, err
	}

	return &IndicatorYearResult{
		Result: Result{
			View:       "indicator-year",
			Empty:      rows.Len() == 0,
			Rows:       NewTable(download),
			download:   download,
			entity:     "empresas",
			descriptor: "filtradas",
			sheet:      SheetCompanies,
		},
		Indicators: append([]string{}, req.Indicators...),
		Counts:     counts,
		Ranking:    ranked,
	}, nil
}
